package api

import (
	"sort"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) handleNotificationsList(c *Context) (*Response, error) {
	items := sortedValues(c.State.Notifications, func(n *state.Notification) string { return n.TS + n.ID })
	sort.SliceStable(items, func(i, j int) bool { return items[i].TS > items[j].TS })
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleNotificationsAck(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	ids, ok := bodyList(body, "ids")
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "ids must be an array.")
	}
	for _, raw := range ids {
		if notification, ok := c.State.Notifications[asString(raw)]; ok {
			notification.Acked = true
		}
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleAuditList(c *Context) (*Response, error) {
	projectID := c.QueryFirst("project_id", "")
	eventType := c.QueryFirst("type", "")
	filtered := []*state.AuditEvent{}
	for _, event := range c.State.AuditEvents {
		if projectID != "" && projectID != event.ProjectID {
			continue
		}
		if eventType != "" && eventType != event.Type {
			continue
		}
		filtered = append(filtered, event)
	}
	page, next := Paginate(c, filtered)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleAdminUsersList(c *Context) (*Response, error) {
	q := lower(c.QueryFirst("q", ""))
	users := sortedValues(c.State.Users, func(u *state.User) string { return u.CreatedAt + u.ID })
	items := []*state.PublicUser{}
	for _, user := range users {
		if user.Disabled {
			continue
		}
		if q != "" && !contains(lower(user.Name), q) && !contains(lower(user.Email), q) {
			continue
		}
		items = append(items, user.Sanitize())
	}
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleAdminUsersCreate(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"name", "email", "roles"} {
		if _, ok := body[key]; !ok {
			return nil, apierr.BadRequest("invalid_request", key+" is required.")
		}
	}
	roles, _ := bodyList(body, "roles")
	user := &state.User{
		ID:        state.NewID("user"),
		Name:      bodyString(body, "name"),
		Email:     bodyString(body, "email"),
		Roles:     stringList(roles),
		CreatedAt: state.NowISO(),
	}
	st := c.State
	st.Users[user.ID] = user
	if err := st.SetPassword(user.ID, bodyString(body, "password")); err != nil {
		delete(st.Users, user.ID)
		return nil, err
	}
	return OK(map[string]any{"user": user.Sanitize()}), nil
}

func (s *Server) handleAdminUsersPatch(c *Context) (*Response, error) {
	userID := c.Param("user_id")
	st := c.State
	user, ok := st.Users[userID]
	if !ok {
		return nil, apierr.NotFound("user_not_found", "User not found: "+userID)
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	if name, ok := body["name"]; ok {
		user.Name = asString(name)
	}
	if roles, ok := body["roles"].([]any); ok {
		user.Roles = stringList(roles)
	}
	if password, ok := body["password"]; ok {
		if err := st.SetPassword(userID, asString(password)); err != nil {
			return nil, err
		}
	}
	if disabled, ok := body["disabled"]; ok {
		user.Disabled, _ = disabled.(bool)
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleAdminUsersDelete(c *Context) (*Response, error) {
	userID := c.Param("user_id")
	st := c.State
	if _, ok := st.Users[userID]; !ok {
		return nil, apierr.NotFound("user_not_found", "User not found: "+userID)
	}
	delete(st.Users, userID)
	delete(st.UserPasswords, userID)
	return OK(map[string]any{"ok": true}), nil
}
