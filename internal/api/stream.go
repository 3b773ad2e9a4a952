package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgestack/devplane/internal/state"
)

// handleStreamSession replays the run event log for a session as a
// server-sent event payload. Clients pass from_cursor to resume where
// they left off; an empty window still yields a keep-alive comment so
// the connection has a body.
func (s *Server) handleStreamSession(c *Context) (*Response, error) {
	sessionID := c.Param("session_id")
	st := c.State
	if _, err := st.EnsureSession(sessionID); err != nil {
		return nil, err
	}
	runID := strings.TrimSpace(c.QueryFirst("run_id", ""))
	fromCursor := c.QueryInt("from_cursor", 0)
	if fromCursor < 0 {
		fromCursor = 0
	}
	var events []state.RunEvent
	if runID != "" {
		events = append(events, st.RunEvents[runID]...)
	} else {
		for _, sessionRunID := range st.SessionRuns[sessionID] {
			events = append(events, st.RunEvents[sessionRunID]...)
		}
	}
	if fromCursor > 0 {
		if fromCursor >= len(events) {
			events = nil
		} else {
			events = events[fromCursor:]
		}
	}
	var b strings.Builder
	if len(events) == 0 {
		b.WriteString(": keep-alive\n\n")
	}
	for i, event := range events {
		eventType := "event"
		if t, ok := event["type"].(string); ok && t != "" {
			eventType = t
		}
		ts, _ := event["ts"].(string)
		if ts == "" {
			ts = state.NowISO()
		}
		envelope := map[string]any{"type": eventType, "ts": ts, "data": event}
		data, err := json.Marshal(envelope)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "id: %d\n", fromCursor+i)
		fmt.Fprintf(&b, "event: %s\n", eventType)
		fmt.Fprintf(&b, "data: %s\n\n", data)
	}
	return &Response{
		Status:      200,
		Body:        []byte(b.String()),
		ContentType: "text/event-stream",
		Headers: map[string]string{
			"Cache-Control":     "no-cache",
			"Connection":        "keep-alive",
			"X-Accel-Buffering": "no",
		},
	}, nil
}
