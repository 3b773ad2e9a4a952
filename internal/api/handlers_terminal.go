package api

import (
	"github.com/forgestack/devplane/internal/apierr"
)

func (s *Server) handleTerminalCreate(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	shell := lower(bodyString(body, "shell"))
	if shell == "" {
		return nil, apierr.BadRequest("invalid_request", "shell is required.")
	}
	cwd := bodyStringDefault(body, "cwd", ".")
	env := map[string]string{}
	if patch, ok := body["env"].(map[string]any); ok {
		for k, v := range patch {
			env[k] = asString(v)
		}
	}
	terminalID, err := c.State.StartTerminal(projectID, shell, cwd, env)
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"terminal_id": terminalID}), nil
}

func (s *Server) handleTerminalKill(c *Context) (*Response, error) {
	c.State.KillTerminal(c.Param("terminal_id"))
	return OK(map[string]any{"ok": true}), nil
}
