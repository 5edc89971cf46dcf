package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tax-assistant/internal/domain"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.groq.com/openai/v1", "https://api.groq.com/openai/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.groq.com/openai/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_RequiresKeySource(t *testing.T) {
	_, err := NewClient()
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(WithAPIKey("gsk-test"))
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.baseURL)
}

// ---------------------------------------------------------------------------
// resolveAPIKey
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetToken(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestResolveAPIKey_StaticWins(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: "from-ssm", onCall: func() { calls++ }}
	c, err := NewClient(WithAPIKey("static"), WithParamStoreKey(g, "/taxchat/groq"))
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "static", key)
	require.Zero(t, calls)
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: "from-ssm", onCall: func() { calls++ }}
	c, err := NewClient(WithParamStoreKey(g, "/taxchat/groq"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		key, err := c.resolveAPIKey(context.Background())
		require.NoError(t, err)
		require.Equal(t, "from-ssm", key)
	}
	require.Equal(t, 1, calls)
}

// ctxGetter fails the first call with err and honours ctx cancellation.
type ctxGetter struct {
	calls    int
	firstErr error
}

func (g *ctxGetter) GetToken(ctx context.Context, _ string) (string, error) {
	g.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.calls == 1 && g.firstErr != nil {
		return "", g.firstErr
	}
	return "from-ssm", nil
}

func TestResolveAPIKey_FailureIsRetried(t *testing.T) {
	g := &ctxGetter{firstErr: errors.New("throttled")}
	c, err := NewClient(WithParamStoreKey(g, "/taxchat/groq"))
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "throttled")

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-ssm", key)
	require.Equal(t, 2, g.calls)

	_, err = c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, g.calls)
}

func TestResolveAPIKey_IgnoresCallerCancellation(t *testing.T) {
	g := &ctxGetter{}
	c, err := NewClient(WithParamStoreKey(g, "/taxchat/groq"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	key, err := c.resolveAPIKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "from-ssm", key)
}

func TestFetchAPIKey(t *testing.T) {
	cases := []struct {
		name    string
		getter  KeyGetter
		param   string
		want    string
		wantErr string
	}{
		{name: "ok", getter: &fakeGetter{val: "k1"}, param: "p", want: "k1"},
		{name: "empty token", getter: &fakeGetter{val: ""}, param: "p", wantErr: "API token is empty"},
		{name: "getter error", getter: &fakeGetter{err: errors.New("ssm unavailable")}, param: "p", wantErr: "ssm unavailable"},
		{name: "nil getter", getter: nil, param: "p", wantErr: "nil"},
		{name: "empty name", getter: &fakeGetter{val: "k"}, param: "", wantErr: "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := fetchAPIKeyFromParamStore(context.Background(), tc.getter, tc.param)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, key)
		})
	}
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		WithAPIKey("gsk-test"),
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func float(v float64) *float64 { return &v }

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "llama3-70b-8192", body["model"])
		require.Equal(t, 1.0, body["temperature"])
		require.Equal(t, 1.0, body["top_p"])
		require.Equal(t, 1024.0, body["max_tokens"])
		require.Equal(t, false, body["stream"])
		require.Len(t, body["messages"], 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" }
			}]
		}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).Chat(context.Background(), domain.ChatRequest{
		Model: "llama3-70b-8192",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleUser, Content: "hi"},
		},
		Temperature: float(1),
		TopP:        float(1),
		MaxTokens:   1024,
	})
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", resp)
}

func TestClient_Chat_StatusErrors(t *testing.T) {
	for _, status := range []int{400, 429, 500} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := newTestClient(t, srv).Chat(context.Background(), domain.ChatRequest{Model: "m"})
		srv.Close()

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
		require.Contains(t, err.Error(), "unexpected status")
	}
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Chat(context.Background(), domain.ChatRequest{Model: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Chat(context.Background(), domain.ChatRequest{Model: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), domain.ChatRequest{Model: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	c, err := NewClient(WithAPIKey("k"))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Chat_KeyError(t *testing.T) {
	c, err := NewClient(WithParamStoreKey(&fakeGetter{err: errors.New("denied")}, "/taxchat/groq"))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), domain.ChatRequest{Model: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "denied")
}

func TestClient_Chat_RecoversAfterCancelledRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer from-ssm", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	g := &ctxGetter{}
	c, err := NewClient(WithParamStoreKey(g, "/taxchat/groq"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Chat(ctx, domain.ChatRequest{Model: "m"})
	require.Error(t, err)

	resp, err := c.Chat(context.Background(), domain.ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Equal(t, 1, g.calls)
}
