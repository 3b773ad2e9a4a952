package api

import (
	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) ensureWorkflow(c *Context, id string) (*state.Workflow, error) {
	workflow, ok := c.State.Workflows[id]
	if !ok {
		return nil, apierr.NotFound("workflow_not_found", "Workflow not found: "+id)
	}
	return workflow, nil
}

func (s *Server) handleProjectWorkflowsList(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	items := []*state.Workflow{}
	for _, wfID := range st.ProjectWorkflows[projectID] {
		if workflow, ok := st.Workflows[wfID]; ok {
			items = append(items, workflow)
		}
	}
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProjectWorkflowsCreate(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	name := bodyString(body, "name")
	if name == "" {
		return nil, apierr.BadRequest("invalid_request", "name is required.")
	}
	now := state.NowISO()
	tags, _ := bodyList(body, "tags")
	workflow := &state.Workflow{
		ID:          state.NewID("wf"),
		ProjectID:   projectID,
		Name:        name,
		Description: bodyString(body, "description"),
		Tags:        stringList(tags),
		Graph:       map[string]any{"nodes": []any{}, "edges": []any{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	st.Workflows[workflow.ID] = workflow
	st.ProjectWorkflows[projectID] = append(st.ProjectWorkflows[projectID], workflow.ID)
	return OK(map[string]any{"workflow_id": workflow.ID}), nil
}

func (s *Server) handleWorkflowsGet(c *Context) (*Response, error) {
	workflow, err := s.ensureWorkflow(c, c.Param("workflow_id"))
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"workflow": workflow}), nil
}

func (s *Server) handleWorkflowsPut(c *Context) (*Response, error) {
	workflow, err := s.ensureWorkflow(c, c.Param("workflow_id"))
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	graph, ok := body["graph"].(map[string]any)
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "graph is required.")
	}
	workflow.Graph = graph
	workflow.UpdatedAt = state.NowISO()
	return OK(map[string]any{"ok": true}), nil
}

// Workflow runs complete synchronously: the run record is created
// already terminal, with its session id pointing back at the workflow.
func (s *Server) handleWorkflowsRun(c *Context) (*Response, error) {
	workflow, err := s.ensureWorkflow(c, c.Param("workflow_id"))
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	if _, ok := body["inputs"]; !ok {
		return nil, apierr.BadRequest("invalid_request", "inputs is required.")
	}
	now := state.NowISO()
	run := &state.Run{
		ID:        state.NewID("run"),
		SessionID: "workflow:" + workflow.ID,
		Status:    state.RunCompleted,
		Progress:  1.0,
		StartedAt: now,
		EndedAt:   &now,
		Result: map[string]any{
			"summary":    "Workflow '" + workflow.Name + "' executed.",
			"message_id": "",
			"diff_ids":   []any{},
		},
		Usage: map[string]any{
			"input_tokens":  0,
			"output_tokens": 0,
			"cost_usd":      0.0,
		},
		Request: map[string]any{"workflow_id": workflow.ID, "inputs": body["inputs"]},
	}
	st := c.State
	st.Runs[run.ID] = run
	st.RunEvents[run.ID] = []state.RunEvent{{
		"type": "status", "ts": now, "status": state.RunCompleted, "progress": 1.0,
	}}
	st.Metrics().RecordRun(state.RunCompleted)
	return OK(map[string]any{"run_id": run.ID}), nil
}
