package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgestack/devplane/internal/retry"
)

func TestLocalEngine_Deterministic(t *testing.T) {
	e := NewLocalEngine()
	msgs := []Message{
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "Add a healthcheck endpoint"},
	}

	first, err := e.Generate(context.Background(), msgs, "gpt-4o-mini", "")
	require.NoError(t, err)
	second, err := e.Generate(context.Background(), msgs, "gpt-4o-mini", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "Add a healthcheck endpoint")
	assert.Contains(t, first, "Be brief.")
}

func TestLocalEngine_NoUserMessage(t *testing.T) {
	_, err := NewLocalEngine().Generate(context.Background(), nil, "m", "")
	assert.Error(t, err)
}

func TestLocalEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalEngine().Generate(ctx, []Message{{Role: RoleUser, Content: "x"}}, "m", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}],"usage":{"prompt_tokens":4,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-4o-mini", "openai")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_api_key","message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("nope", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-4o-mini", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenAIClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL), WithRetryConfig(retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}))
	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-4o-mini", "openai")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
