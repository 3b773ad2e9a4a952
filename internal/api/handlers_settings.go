package api

import (
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) handleSettingsGet(c *Context) (*Response, error) {
	return OK(map[string]any{"settings": c.State.Settings}), nil
}

func (s *Server) handleSettingsPut(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	st := c.State
	changes := state.CollectSettingsChanges(st.Settings, body, "")
	st.Settings = state.DeepMerge(st.Settings, body)
	for _, change := range changes {
		st.SettingsAuditEvents = append(st.SettingsAuditEvents, &state.SettingsAuditEvent{
			ID:          state.NewID("setaudit"),
			TS:          state.NowISO(),
			ActorUserID: c.ActorID(),
			Change:      change,
		})
	}
	if len(changes) > 0 {
		data := make([]any, 0, len(changes))
		for _, change := range changes {
			data = append(data, change)
		}
		st.RecordAudit(c.ActorID(), "settings.updated", map[string]any{"changes": data}, "")
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleSettingsAudit(c *Context) (*Response, error) {
	page, next := Paginate(c, c.State.SettingsAuditEvents)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}
