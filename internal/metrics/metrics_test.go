package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveAnswer("success")
	m.ObserveAnswer("success")
	m.ObserveAnswer("upstream_error")
	m.HistoryWriteFailed()
	m.ObserveLLMLatency(1500 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.answers.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("upstream_error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.writeFailures))
	require.Equal(t, 1, testutil.CollectAndCount(m.llmLatency))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveAnswer("rate_limited")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `taxchat_answers_total{outcome="rate_limited"} 1`)
	require.Contains(t, body, "taxchat_llm_request_seconds_bucket")
	require.Contains(t, body, "go_goroutines")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAnswer("success")
	m.ObserveLLMLatency(time.Second)
	m.HistoryWriteFailed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveAnswer("success")
	require.Equal(t, 0.0, testutil.ToFloat64(b.answers.WithLabelValues("success")))
}
