package api

import (
	"context"
	"encoding/json"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
	"github.com/forgestack/devplane/internal/tools"
)

func (s *Server) handleToolsList(c *Context) (*Response, error) {
	scopeFilter := lower(c.QueryFirst("scope", ""))
	q := lower(c.QueryFirst("q", ""))
	st := c.State
	runtime, err := st.RuntimeForProject("")
	if err != nil {
		return nil, err
	}
	items := []map[string]any{}
	for _, name := range runtime.Available() {
		items = append(items, map[string]any{
			"id":          name,
			"name":        name,
			"scope":       "global",
			"description": "Built-in tool: " + name,
			"schema":      map[string]any{"type": "object", "additionalProperties": true},
			"created_at":  state.NowISO(),
		})
	}
	dynamic := sortedValues(st.DynamicTools, func(t *state.DynamicTool) string { return t.CreatedAt + t.ID })
	for _, tool := range dynamic {
		items = append(items, map[string]any{
			"id":          tool.ID,
			"name":        tool.Name,
			"scope":       tool.Scope,
			"description": tool.Description,
			"schema":      tool.Schema,
			"created_at":  tool.CreatedAt,
		})
	}
	filtered := []map[string]any{}
	for _, item := range items {
		if scopeFilter != "" && scopeFilter != lower(asString(item["scope"])) {
			continue
		}
		if q != "" && !contains(lower(asString(item["name"])), q) && !contains(lower(asString(item["description"])), q) {
			continue
		}
		filtered = append(filtered, item)
	}
	page, next := Paginate(c, filtered)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleToolsCreate(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"name", "scope", "description", "schema", "handler"} {
		if _, ok := body[key]; !ok {
			return nil, apierr.BadRequest("invalid_request", "Missing required field: "+key)
		}
	}
	var handler tools.Handler
	if raw, marshalErr := json.Marshal(body["handler"]); marshalErr == nil {
		_ = json.Unmarshal(raw, &handler)
	}
	tool := &state.DynamicTool{
		ID:          state.NewID("tool"),
		Name:        bodyString(body, "name"),
		Scope:       bodyString(body, "scope"),
		Description: bodyString(body, "description"),
		Schema:      bodyMap(body, "schema"),
		Handler:     handler,
		CreatedAt:   state.NowISO(),
	}
	c.State.DynamicTools[tool.ID] = tool
	return OK(map[string]any{"tool_id": tool.ID}), nil
}

func (s *Server) handleToolsDelete(c *Context) (*Response, error) {
	toolID := c.Param("tool_id")
	if _, ok := c.State.DynamicTools[toolID]; !ok {
		return nil, apierr.NotFound("tool_not_found", "Dynamic tool not found: "+toolID)
	}
	delete(c.State.DynamicTools, toolID)
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleToolsInvoke(c *Context) (*Response, error) {
	toolID := c.Param("tool_id")
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	args, ok := body["args"].(map[string]any)
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "args must be an object.")
	}
	projectID := ""
	if invokeCtx, ok := body["context"].(map[string]any); ok {
		projectID = bodyString(invokeCtx, "project_id")
	}
	// Invocation runs unlocked: tool handlers shell out or POST over
	// the network, so the store is only held for the lookups.
	st := c.State
	st.Mu.Lock()
	var handler tools.Handler
	tool, dynamic := st.DynamicTools[toolID]
	if dynamic {
		handler = tool.Handler
	}
	runtime, err := st.RuntimeForProject(projectID)
	st.Mu.Unlock()
	if err != nil {
		return nil, err
	}
	if dynamic {
		invoked, result := runtime.InvokeHandler(context.Background(), handler, args)
		return OK(map[string]any{"ok": invoked, "result": result}), nil
	}
	result := runtime.Execute(context.Background(), toolID, args)
	payload := result.Data
	if payload == nil {
		payload = map[string]any{"output": result.Output}
	}
	return OK(map[string]any{"ok": result.OK, "result": payload}), nil
}
