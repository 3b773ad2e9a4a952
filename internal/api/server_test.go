package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgestack/devplane/internal/config"
	"github.com/forgestack/devplane/internal/llm"
	"github.com/forgestack/devplane/internal/metrics"
	"github.com/forgestack/devplane/internal/state"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BasePath:        "/api/v1",
		Version:         "1.0.0",
		Build:           "test",
		APIKey:          "dev-api-key",
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		AdminName:       "Admin",
		AdminEmail:      "admin@devplane.local",
		AdminPassword:   "admin",
		WorkspaceDir:    t.TempDir(),
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	st, err := state.New(cfg, nil, llm.NewLocalEngine(), metrics.New(), zerolog.Nop())
	require.NoError(t, err)
	return NewServer(st, zerolog.Nop())
}

// request runs one request through the Fiber app and decodes the JSON
// response when there is one.
func request(t *testing.T, s *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && json.Valid(raw) {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	status, body := request(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"method":  "api_key",
		"api_key": "dev-api-key",
	})
	require.Equal(t, 200, status)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func errorBody(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return envelope
}

func TestLoginAPIKey(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	status, body := request(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"method":  "api_key",
		"api_key": "wrong",
	})
	assert.Equal(t, 401, status)
	envelope := errorBody(t, body)
	assert.Equal(t, "invalid_credentials", envelope["code"])
	reqID, _ := envelope["request_id"].(string)
	assert.True(t, len(reqID) > 4 && reqID[:4] == "req_", "request id %q", reqID)

	status, body = request(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"method":  "api_key",
		"api_key": "dev-api-key",
	})
	assert.Equal(t, 200, status)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, float64(3600), body["expires_in"])
}

func TestLoginPasswordAndRefresh(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	status, body := request(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"method":   "password",
		"email":    "admin@devplane.local",
		"password": "admin",
	})
	require.Equal(t, 200, status)
	refresh, _ := body["refresh_token"].(string)
	require.NotEmpty(t, refresh)

	status, body = request(t, s, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	assert.Equal(t, 200, status)
	assert.NotEmpty(t, body["access_token"])

	// Refresh tokens are single use.
	status, body = request(t, s, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	assert.Equal(t, 401, status)
	assert.Equal(t, "invalid_refresh_token", errorBody(t, body)["code"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	status, body := request(t, s, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, 401, status)
	assert.Equal(t, "unauthorized", errorBody(t, body)["code"])

	status, _ = request(t, s, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, 200, status)
}

func TestAuthDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthDisabled = true
	s := newTestServer(t, cfg)

	status, body := request(t, s, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, 200, status)
	assert.Contains(t, body, "items")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)

	status, body := request(t, s, http.MethodGet, "/api/v1/nope", token, nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "not_found", errorBody(t, body)["code"])

	status, body = request(t, s, http.MethodDelete, "/api/v1/projects", token, nil)
	assert.Equal(t, 405, status)
	assert.Equal(t, "method_not_allowed", errorBody(t, body)["code"])
}

func TestBasePathMismatch(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	status, body := request(t, s, http.MethodGet, "/elsewhere", "", nil)
	assert.Equal(t, 404, status)
	envelope := errorBody(t, body)
	assert.Equal(t, "Unknown API path.", envelope["message"])
	details, _ := envelope["details"].(map[string]any)
	assert.Equal(t, "/elsewhere", details["path"])
}

func createProject(t *testing.T, s *Server, token, name string) string {
	t.Helper()
	status, body := request(t, s, http.MethodPost, "/api/v1/projects", token, map[string]any{
		"name": name,
	})
	require.Equal(t, 200, status)
	project, _ := body["project"].(map[string]any)
	id, _ := project["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestProjectSessionRunFlow(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)
	projectID := createProject(t, s, token, "demo")

	status, body := request(t, s, http.MethodPost, "/api/v1/projects/"+projectID+"/sessions", token, map[string]any{
		"title":    "First session",
		"model_id": "gpt-4o-mini",
	})
	require.Equal(t, 200, status)
	session, _ := body["session"].(map[string]any)
	sessionID, _ := session["id"].(string)
	require.NotEmpty(t, sessionID)

	status, body = request(t, s, http.MethodPost, "/api/v1/sessions/"+sessionID+"/messages", token, map[string]any{
		"role":    "user",
		"content": []any{map[string]any{"type": "text", "text": "hello"}},
	})
	require.Equal(t, 200, status)
	messageID, _ := body["message_id"].(string)
	require.NotEmpty(t, messageID)

	status, body = request(t, s, http.MethodPost, "/api/v1/sessions/"+sessionID+"/runs", token, map[string]any{
		"mode":  "chat",
		"agent": map[string]any{"instructions": "be brief"},
		"input": map[string]any{"message_id": messageID},
	})
	require.Equal(t, 200, status)
	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)

	var run map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, body = request(t, s, http.MethodGet, "/api/v1/runs/"+runID, token, nil)
		require.Equal(t, 200, status)
		run, _ = body["run"].(map[string]any)
		if run["status"] == "completed" || run["status"] == "failed" {
			break
		}
		require.True(t, time.Now().Before(deadline), "run did not finish: %v", run)
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, "completed", run["status"])
	result, _ := run["result"].(map[string]any)
	assert.NotEmpty(t, result["message_id"])
	assert.NotEmpty(t, result["summary"])

	// The assistant reply is appended to the session transcript.
	status, body = request(t, s, http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", token, nil)
	require.Equal(t, 200, status)
	items, _ := body["items"].([]any)
	require.Len(t, items, 2)
	last, _ := items[1].(map[string]any)
	assert.Equal(t, "assistant", last["role"])

	status, body = request(t, s, http.MethodGet, "/api/v1/runs/"+runID+"/events", token, nil)
	require.Equal(t, 200, status)
	events, _ := body["items"].([]any)
	assert.GreaterOrEqual(t, len(events), 3)
}

func TestFilesEtagConflict(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)
	projectID := createProject(t, s, token, "filing")

	status, body := request(t, s, http.MethodPut, "/api/v1/projects/"+projectID+"/files/content", token, map[string]any{
		"path": "notes.txt",
		"text": "first draft",
	})
	require.Equal(t, 200, status)
	etag, _ := body["etag"].(string)
	require.NotEmpty(t, etag)

	status, body = request(t, s, http.MethodPut, "/api/v1/projects/"+projectID+"/files/content", token, map[string]any{
		"path": "notes.txt",
		"text": "conflicting edit",
		"etag": "stale",
	})
	assert.Equal(t, 409, status)
	assert.Equal(t, "etag_conflict", errorBody(t, body)["code"])

	status, _ = request(t, s, http.MethodPut, "/api/v1/projects/"+projectID+"/files/content", token, map[string]any{
		"path": "notes.txt",
		"text": "second draft",
		"etag": etag,
	})
	assert.Equal(t, 200, status)

	status, body = request(t, s, http.MethodGet, "/api/v1/projects/"+projectID+"/files/content?path=notes.txt", token, nil)
	require.Equal(t, 200, status)
	assert.Equal(t, "second draft", body["text"])
}

func TestProjectsPaginationWalk(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)
	for i := 0; i < 7; i++ {
		createProject(t, s, token, "proj")
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		path := "/api/v1/projects?limit=3"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		status, body := request(t, s, http.MethodGet, path, token, nil)
		require.Equal(t, 200, status)
		items, _ := body["items"].([]any)
		for _, it := range items {
			project, _ := it.(map[string]any)
			id, _ := project["id"].(string)
			assert.False(t, seen[id], "duplicate page entry %s", id)
			seen[id] = true
		}
		next, _ := body["next_cursor"].(string)
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Len(t, seen, 7)
}

func TestProjectDeleteCascadesSessions(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)
	projectID := createProject(t, s, token, "doomed")

	status, body := request(t, s, http.MethodPost, "/api/v1/projects/"+projectID+"/sessions", token, map[string]any{
		"title":    "short lived",
		"model_id": "gpt-4o-mini",
	})
	require.Equal(t, 200, status)
	session, _ := body["session"].(map[string]any)
	sessionID, _ := session["id"].(string)

	status, _ = request(t, s, http.MethodDelete, "/api/v1/projects/"+projectID, token, nil)
	require.Equal(t, 200, status)

	status, body = request(t, s, http.MethodGet, "/api/v1/projects/"+projectID, token, nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "project_not_found", errorBody(t, body)["code"])

	status, body = request(t, s, http.MethodGet, "/api/v1/sessions/"+sessionID, token, nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "session_not_found", errorBody(t, body)["code"])
}

func TestStreamReplay(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)
	projectID := createProject(t, s, token, "streams")

	status, body := request(t, s, http.MethodPost, "/api/v1/projects/"+projectID+"/sessions", token, map[string]any{
		"title":    "quiet",
		"model_id": "gpt-4o-mini",
	})
	require.Equal(t, 200, status)
	session, _ := body["session"].(map[string]any)
	sessionID, _ := session["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/sessions/"+sessionID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, ": keep-alive\n\n", string(raw))
}

func TestRootEndpointListing(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	status, body := request(t, s, http.MethodGet, "/api/v1", "", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, "Devplane Platform API", body["name"])
	assert.Equal(t, "/api/v1", body["base_path"])
	endpoints, _ := body["endpoints"].([]any)
	assert.NotEmpty(t, endpoints)
}

func TestHandlerPanicReturns500(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	s.router.Add("GET", "/boom", func(c *Context) (*Response, error) { panic("kaboom") }, NoAuth())

	status, body := request(t, s, http.MethodGet, "/api/v1/boom", "", nil)
	assert.Equal(t, 500, status)
	assert.Equal(t, "internal_error", errorBody(t, body)["code"])
}

func createHTTPTool(t *testing.T, s *Server, token, url string) string {
	t.Helper()
	status, body := request(t, s, http.MethodPost, "/api/v1/tools", token, map[string]any{
		"name":        "webhook",
		"scope":       "global",
		"description": "posts args to a webhook",
		"schema":      map[string]any{"type": "object"},
		"handler":     map[string]any{"type": "http", "url": url},
	})
	require.Equal(t, 200, status)
	toolID, _ := body["tool_id"].(string)
	require.NotEmpty(t, toolID)
	return toolID
}

func TestDynamicToolInvokeHTTP(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var args map[string]any
		require.NoError(t, json.Unmarshal(raw, &args))
		assert.Equal(t, "world", args["hello"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"echoed":true}`))
	}))
	defer upstream.Close()

	toolID := createHTTPTool(t, s, token, upstream.URL)
	status, body := request(t, s, http.MethodPost, "/api/v1/tools/"+toolID+"/invoke", token, map[string]any{
		"args": map[string]any{"hello": "world"},
	})
	require.Equal(t, 200, status)
	assert.Equal(t, true, body["ok"])
	result, _ := body["result"].(map[string]any)
	assert.Equal(t, true, result["echoed"])
}

func TestDynamicToolInvokeDoesNotHoldStoreLock(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	token := login(t, s)

	// The upstream makes a locked request back into the API before
	// responding. If the invoke held the store lock across the HTTP
	// call, this would deadlock instead of completing.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, _ := request(t, s, http.MethodGet, "/api/v1/projects", token, nil)
		assert.Equal(t, 200, status)
		w.Write([]byte(`{"nested":"done"}`))
	}))
	defer upstream.Close()

	toolID := createHTTPTool(t, s, token, upstream.URL)
	status, body := request(t, s, http.MethodPost, "/api/v1/tools/"+toolID+"/invoke", token, map[string]any{
		"args": map[string]any{},
	})
	require.Equal(t, 200, status)
	assert.Equal(t, true, body["ok"])
}
