package api

import (
	"math/rand"
	"time"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) capabilities() map[string]any {
	return map[string]any{
		"features": map[string]any{
			"ws_streaming":   false,
			"sse_streaming":  true,
			"diffs":          true,
			"file_editor":    true,
			"workflows":      true,
			"deployments":    true,
			"telemetry":      true,
			"multi_provider": true,
		},
		"limits": map[string]any{
			"max_projects":             1000,
			"max_sessions_per_project": 10000,
			"max_file_size_bytes":      2 * 1024 * 1024,
			"max_upload_size_bytes":    200 * 1024 * 1024,
			"max_context_tokens":       200000,
		},
	}
}

func (s *Server) handleRoot(c *Context) (*Response, error) {
	cfg := c.State.Config()
	return OK(map[string]any{
		"ok":        true,
		"name":      "Devplane Platform API",
		"version":   cfg.Version,
		"base_path": cfg.BasePath,
		"endpoints": s.router.Endpoints(),
	}), nil
}

func (s *Server) handleHealth(c *Context) (*Response, error) {
	cfg := c.State.Config()
	return OK(map[string]any{
		"ok":       true,
		"version":  cfg.Version,
		"build":    cfg.Build,
		"uptime_s": c.State.Uptime(),
		"time":     state.NowISO(),
	}), nil
}

func (s *Server) handleCapabilities(c *Context) (*Response, error) {
	return OK(s.capabilities()), nil
}

func (s *Server) handleServerStats(c *Context) (*Response, error) {
	windowSeconds := c.QueryInt("window_s", 60)
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	if windowSeconds > 3600 {
		windowSeconds = 3600
	}
	rps, p95 := c.State.Metrics().Window(time.Duration(windowSeconds) * time.Second)
	return OK(map[string]any{
		"cpu":      map[string]any{"pct": 0.0},
		"ram":      map[string]any{"used_bytes": 0, "total_bytes": 0},
		"gpu":      map[string]any{"pct": 0.0, "vram_used_bytes": 0, "vram_total_bytes": 0},
		"network":  map[string]any{"rx_bps": 0, "tx_bps": 0},
		"requests": map[string]any{"rps": rps, "p95_ms": p95},
	}), nil
}

func (s *Server) handleAuthLogin(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	switch bodyString(body, "method") {
	case "password":
		pair, err := c.State.LoginPassword(bodyString(body, "email"), bodyString(body, "password"))
		if err != nil {
			return nil, err
		}
		return OK(pair), nil
	case "api_key":
		pair, err := c.State.LoginAPIKey(bodyString(body, "api_key"))
		if err != nil {
			return nil, err
		}
		return OK(pair), nil
	}
	return nil, apierr.BadRequest("invalid_method", "Unsupported login method.")
}

func (s *Server) handleAuthRefresh(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	token := bodyString(body, "refresh_token")
	if token == "" {
		return nil, apierr.BadRequest("invalid_request", "refresh_token is required.")
	}
	pair, err := c.State.Refresh(token)
	if err != nil {
		return nil, err
	}
	return OK(pair), nil
}

func (s *Server) handleAuthLogout(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	if token := bodyString(body, "refresh_token"); token != "" {
		c.State.Logout(token)
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleMe(c *Context) (*Response, error) {
	if c.User == nil {
		return nil, apierr.Unauthorized("unauthorized", "Unauthorized.")
	}
	return OK(map[string]any{"user": c.User}), nil
}

func (s *Server) handleProvidersList(c *Context) (*Response, error) {
	page, next := Paginate(c, providerCatalog())
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProvidersScan(c *Context) (*Response, error) {
	body, err := c.JSON(false)
	if err != nil {
		return nil, err
	}
	discovered := []string{}
	include, hasInclude := bodyList(body, "include")
	includeSet := map[string]bool{}
	for _, raw := range include {
		includeSet[asString(raw)] = true
	}
	for _, provider := range providerCatalog() {
		id := asString(provider["id"])
		if hasInclude && len(includeSet) > 0 && !includeSet[id] {
			continue
		}
		discovered = append(discovered, id)
	}
	warnings := []string{}
	if c.State.Chat() == nil {
		warnings = append(warnings, "No chat backend loaded in current runtime config.")
	}
	return OK(map[string]any{"ok": true, "discovered": discovered, "warnings": warnings}), nil
}

func (s *Server) handleProviderModels(c *Context) (*Response, error) {
	providerID := c.Param("provider_id")
	q := lower(c.QueryFirst("q", ""))
	capability := lower(c.QueryFirst("capability", ""))
	capabilities := []string{"chat", "tools", "vision", "streaming"}
	items := []map[string]any{}
	for _, name := range knownModels(providerID) {
		if q != "" && !contains(lower(name), q) {
			continue
		}
		if capability != "" && !containsString(capabilities, capability) {
			continue
		}
		items = append(items, map[string]any{
			"id":             name,
			"label":          name,
			"context_tokens": 128000,
			"capabilities":   capabilities,
			"pricing":        map[string]any{},
		})
	}
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProviderTest(c *Context) (*Response, error) {
	if _, err := c.JSON(false); err != nil {
		return nil, err
	}
	latency := 20 + rand.Intn(181)
	providerID := c.Param("provider_id")
	return OK(map[string]any{
		"ok":         true,
		"latency_ms": latency,
		"details":    providerID + " provider check succeeded",
	}), nil
}
