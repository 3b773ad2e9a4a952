package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Handler describes how a dynamic tool executes. Type is "http" (POST
// the args to URL) or "command" (run Command under the workspace root).
type Handler struct {
	Type    string            `json:"type"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Command string            `json:"command,omitempty"`
}

var handlerHTTPClient = &http.Client{Timeout: 20 * time.Second}

// InvokeHandler executes a dynamic tool handler. The boolean mirrors
// Result.OK: false means the handler itself was unusable.
func (r *Runtime) InvokeHandler(ctx context.Context, h Handler, args map[string]any) (bool, any) {
	switch strings.ToLower(strings.TrimSpace(h.Type)) {
	case "http":
		return r.invokeHTTP(ctx, h, args)
	case "command":
		if strings.TrimSpace(h.Command) == "" {
			return false, map[string]any{"error": "command handler requires command"}
		}
		res := r.commandTool(h.Command)(ctx, args)
		if !res.OK {
			return false, map[string]any{"error": res.Output}
		}
		if res.Data != nil {
			return true, res.Data
		}
		return true, map[string]any{"text": res.Output}
	default:
		return false, map[string]any{"error": fmt.Sprintf("%v: %s", ErrUnsupportedHandler, h.Type)}
	}
}

func (r *Runtime) invokeHTTP(ctx context.Context, h Handler, args map[string]any) (bool, any) {
	if strings.TrimSpace(h.URL) == "" {
		return false, map[string]any{"error": "http handler requires url"}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return false, map[string]any{"error": err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return false, map[string]any{"error": err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	resp, err := handlerHTTPClient.Do(req)
	if err != nil {
		return false, map[string]any{"error": err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, map[string]any{"error": err.Error()}
	}
	var parsed any
	if json.Unmarshal(raw, &parsed) == nil {
		return true, parsed
	}
	return true, map[string]any{"text": string(raw)}
}
