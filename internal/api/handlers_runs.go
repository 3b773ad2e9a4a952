package api

import (
	"github.com/forgestack/devplane/internal/apierr"
)

func (s *Server) handleSessionRunsCreate(c *Context) (*Response, error) {
	sessionID := c.Param("session_id")
	st := c.State
	session, err := st.EnsureSession(sessionID)
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	if bodyString(body, "mode") == "" {
		return nil, apierr.BadRequest("invalid_request", "mode is required.")
	}
	if _, ok := body["agent"].(map[string]any); !ok {
		return nil, apierr.BadRequest("invalid_request", "agent is required.")
	}
	if _, ok := body["input"].(map[string]any); !ok {
		return nil, apierr.BadRequest("invalid_request", "input is required.")
	}
	run := st.CreateRun(sessionID, body)
	if project, ok := st.Projects[session.ProjectID]; ok {
		project.Stats.Runs24h++
	}
	return OK(map[string]any{"run_id": run.ID}), nil
}

func (s *Server) handleRunsGet(c *Context) (*Response, error) {
	run, err := c.State.EnsureRun(c.Param("run_id"))
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"run": run.View()}), nil
}

func (s *Server) handleRunsCancel(c *Context) (*Response, error) {
	if _, err := c.State.CancelRun(c.Param("run_id")); err != nil {
		return nil, err
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleRunsEvents(c *Context) (*Response, error) {
	runID := c.Param("run_id")
	if _, err := c.State.EnsureRun(runID); err != nil {
		return nil, err
	}
	page, next := Paginate(c, c.State.RunEvents[runID])
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}
