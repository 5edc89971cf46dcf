package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tax-assistant/internal/flow"
	"tax-assistant/internal/integrations/answerservice"
	"tax-assistant/internal/usecase"
)

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPage_Get(t *testing.T) {
	h := newTestHandler(t, &stubUseCase{})
	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, flow.MsgInitialNote)
	require.Contains(t, body, `placeholder="`+flow.BusinessPlaceholder+`"`)
	require.Contains(t, body, `value="business" checked`)
	require.Contains(t, body, `e.key === 'Enter' && !e.shiftKey`)
}

func TestPage_SubmitSuccessEscapesAndBreaksLines(t *testing.T) {
	uc := &stubUseCase{answer: "Line <one>\nLine two"}
	h := newTestHandler(t, uc)

	rec := postForm(t, h, url.Values{"question": {"Is tuition a tax credit?"}, "mode": {"student"}, "action": {"submit", ""}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Is tuition a tax credit?", uc.prompt[len("As a student, "):])
	require.True(t, strings.HasPrefix(uc.prompt, "As a student, "))

	body := rec.Body.String()
	require.Contains(t, body, "Line &lt;one&gt;<br>Line two")
	require.Contains(t, body, `class="success"`)
	require.Contains(t, body, `value="student" checked`)
	require.Contains(t, body, flow.StudentPlaceholder)
}

func TestPage_SubmitOffTopicDoesNotCallService(t *testing.T) {
	uc := &stubUseCase{}
	h := newTestHandler(t, uc)

	rec := postForm(t, h, url.Values{"question": {"What is the weather today?"}, "action": {"submit"}})
	require.Equal(t, 0, uc.calls)
	require.Contains(t, rec.Body.String(), `class="error"`)
	require.Contains(t, rec.Body.String(), "This appears to be a non-tax related question.")
}

func TestPage_SubmitEmpty(t *testing.T) {
	uc := &stubUseCase{}
	h := newTestHandler(t, uc)

	rec := postForm(t, h, url.Values{"question": {"   "}, "action": {"submit"}})
	require.Equal(t, 0, uc.calls)
	require.Contains(t, rec.Body.String(), `class="alert"`)
	require.Contains(t, rec.Body.String(), flow.MsgEmptyInput)
}

func TestPage_SubmitServiceError(t *testing.T) {
	uc := &stubUseCase{answerErr: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "llm_error", Err: errors.New("x")}}
	h := newTestHandler(t, uc)

	rec := postForm(t, h, url.Values{"question": {"How do I file my tax return?"}, "action": {"submit"}})
	require.Contains(t, rec.Body.String(), "Error: API request failed with status 500: Internal Server Error")
}

func TestPage_Cancel(t *testing.T) {
	uc := &stubUseCase{}
	h := newTestHandler(t, uc)

	rec := postForm(t, h, url.Values{"question": {"What is a W-2 form for tax?"}, "action": {"cancel", ""}})
	require.Equal(t, 0, uc.calls)
	body := rec.Body.String()
	require.NotContains(t, body, "What is a W-2 form for tax?")
	require.NotContains(t, body, flow.MsgInitialNote)
}

func TestPage_ModeChangeKeepsQuestion(t *testing.T) {
	h := newTestHandler(t, &stubUseCase{})

	rec := postForm(t, h, url.Values{"question": {"draft question"}, "mode": {"student"}, "action": {"mode"}})
	body := rec.Body.String()
	require.Contains(t, body, flow.MsgStudentNote)
	require.Contains(t, body, ">draft question</textarea>")
	require.Contains(t, body, flow.StudentPlaceholder)

	rec = postForm(t, h, url.Values{"mode": {"bogus"}, "action": {"mode"}})
	require.Contains(t, rec.Body.String(), flow.MsgBusinessNote)
}

func TestLocalAnswerer_StatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited}, status: http.StatusTooManyRequests},
		{name: "invalid", err: &usecase.Error{Code: usecase.ErrorInvalidInput}, status: http.StatusBadRequest},
		{name: "plain", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := localAnswerer{uc: &stubUseCase{answerErr: tc.err}}.Ask(context.Background(), "tax")
			var se *answerservice.StatusError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tc.status, se.StatusCode)
			require.Equal(t, http.StatusText(tc.status), se.StatusText)
		})
	}
}

func TestLastValue(t *testing.T) {
	require.Equal(t, "submit", lastValue([]string{"submit", ""}))
	require.Equal(t, "mode", lastValue([]string{"", "mode"}))
	require.Equal(t, "", lastValue(nil))
}
