package api

import (
	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) handleProjectSessionsList(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	q := lower(c.QueryFirst("q", ""))
	status := lower(c.QueryFirst("status", ""))
	filtered := []*state.Session{}
	for _, sid := range st.ProjectSessions[projectID] {
		session, ok := st.Sessions[sid]
		if !ok {
			continue
		}
		if q != "" && !contains(lower(session.Title), q) {
			continue
		}
		if status != "" && status != lower(session.Status) {
			continue
		}
		filtered = append(filtered, session)
	}
	page, next := Paginate(c, filtered)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProjectSessionsCreate(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	project, err := st.EnsureProject(projectID)
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	title := bodyString(body, "title")
	if title == "" {
		return nil, apierr.BadRequest("invalid_request", "title is required.")
	}
	providerID := bodyStringDefault(body, "provider_id", asString(st.Settings["default_provider_id"]))
	modelID := bodyStringDefault(body, "model_id", asString(st.Settings["default_model_id"]))
	if modelID == "" {
		return nil, apierr.BadRequest("invalid_request", "model_id is required.")
	}
	now := state.NowISO()
	tags, _ := bodyList(body, "tags")
	session := &state.Session{
		ID:         state.NewID("sess"),
		ProjectID:  projectID,
		Title:      title,
		Status:     bodyStringDefault(body, "status", "active"),
		ProviderID: providerID,
		ModelID:    modelID,
		Config:     bodyMap(body, "config"),
		Memory:     bodyMap(body, "memory"),
		Tags:       stringList(tags),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	st.Sessions[session.ID] = session
	st.ProjectSessions[projectID] = append(st.ProjectSessions[projectID], session.ID)
	st.SessionMessages[session.ID] = []string{}
	st.SessionRuns[session.ID] = []string{}
	project.Stats.Sessions++
	project.UpdatedAt = now
	st.Metrics().SessionsActive.Inc()
	st.RecordAudit(c.ActorID(), "session.created", map[string]any{"session_id": session.ID}, projectID)
	return OK(map[string]any{"session": session}), nil
}

func (s *Server) handleSessionsGet(c *Context) (*Response, error) {
	session, err := c.State.EnsureSession(c.Param("session_id"))
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"session": session}), nil
}

func (s *Server) handleSessionsPatch(c *Context) (*Response, error) {
	sessionID := c.Param("session_id")
	session, err := c.State.EnsureSession(sessionID)
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for key, value := range body {
		switch key {
		case "title":
			session.Title = asString(value)
		case "status":
			session.Status = asString(value)
		case "provider_id":
			session.ProviderID = asString(value)
		case "model_id":
			session.ModelID = asString(value)
		case "config":
			if cfg, ok := value.(map[string]any); ok {
				session.Config = cfg
			}
		case "memory":
			if mem, ok := value.(map[string]any); ok {
				session.Memory = mem
			}
		case "tags":
			if tags, ok := value.([]any); ok {
				session.Tags = stringList(tags)
			}
		}
	}
	session.UpdatedAt = state.NowISO()
	c.State.RecordAudit(c.ActorID(), "session.updated", map[string]any{"session_id": sessionID, "changes": body}, session.ProjectID)
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleSessionMessagesList(c *Context) (*Response, error) {
	sessionID := c.Param("session_id")
	st := c.State
	if _, err := st.EnsureSession(sessionID); err != nil {
		return nil, err
	}
	afterTS, hasAfter := ParseISO(c.QueryFirst("after_ts", ""))
	beforeTS, hasBefore := ParseISO(c.QueryFirst("before_ts", ""))
	filtered := []*state.Message{}
	for _, mid := range st.SessionMessages[sessionID] {
		message, ok := st.Messages[mid]
		if !ok {
			continue
		}
		ts, tsOK := ParseISO(message.TS)
		if hasAfter && tsOK && !ts.After(afterTS) {
			continue
		}
		if hasBefore && tsOK && !ts.Before(beforeTS) {
			continue
		}
		filtered = append(filtered, message)
	}
	page, next := Paginate(c, filtered)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleSessionMessagesCreate(c *Context) (*Response, error) {
	sessionID := c.Param("session_id")
	st := c.State
	if _, err := st.EnsureSession(sessionID); err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	role := bodyString(body, "role")
	if role == "" {
		return nil, apierr.BadRequest("invalid_request", "role is required.")
	}
	rawContent, ok := bodyList(body, "content")
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "content must be an array.")
	}
	content := make([]map[string]any, 0, len(rawContent))
	for _, part := range rawContent {
		if m, ok := part.(map[string]any); ok {
			content = append(content, m)
		}
	}
	message := &state.Message{
		ID:        state.NewID("msg"),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Meta:      bodyMap(body, "meta"),
		TS:        state.NowISO(),
	}
	st.Messages[message.ID] = message
	st.SessionMessages[sessionID] = append(st.SessionMessages[sessionID], message.ID)
	return OK(map[string]any{"message_id": message.ID}), nil
}
