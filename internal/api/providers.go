package api

import (
	"strings"

	"github.com/forgestack/devplane/internal/state"
)

func lower(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

func contains(haystack, needle string) bool { return strings.Contains(haystack, needle) }

func containsString(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}

func supports(chat, tools, vision, embeddings, audio, streaming bool) map[string]any {
	return map[string]any{
		"chat":       chat,
		"tools":      tools,
		"vision":     vision,
		"embeddings": embeddings,
		"audio":      audio,
		"streaming":  streaming,
	}
}

// providerCatalog is the static provider directory exposed by the API.
// Health of each entry is checked lazily via the test endpoint.
func providerCatalog() []map[string]any {
	now := state.NowISO()
	return []map[string]any{
		{
			"id": "openai", "label": "OpenAI", "type": "cloud", "status": "active",
			"base_url":        "https://api.openai.com",
			"supports":        supports(true, true, true, true, true, true),
			"last_checked_at": now,
		},
		{
			"id": "anthropic", "label": "Anthropic", "type": "cloud", "status": "active",
			"base_url":        "https://api.anthropic.com",
			"supports":        supports(true, true, true, false, false, true),
			"last_checked_at": now,
		},
		{
			"id": "ollama", "label": "Ollama", "type": "local", "status": "idle",
			"base_url":        "http://localhost:11434",
			"supports":        supports(true, true, true, true, false, true),
			"last_checked_at": now,
		},
		{
			"id": "local", "label": "Local Engine", "type": "proxy", "status": "active",
			"base_url":        "",
			"supports":        supports(true, true, true, true, true, true),
			"last_checked_at": now,
		},
		{
			"id": "custom", "label": "Custom", "type": "proxy", "status": "idle",
			"base_url":        "",
			"supports":        supports(true, true, true, true, true, true),
			"last_checked_at": now,
		},
	}
}

var providerModels = map[string][]string{
	"openai":    {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini"},
	"anthropic": {"claude-3-5-sonnet", "claude-3-5-haiku", "claude-3-opus"},
	"ollama":    {"llama3.1", "llama3.1:70b", "mistral", "qwen2.5-coder"},
}

var defaultModels = []string{
	"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini",
	"claude-3-5-sonnet", "claude-3-5-haiku",
	"llama3.1", "mistral",
}

// knownModels lists model names for a provider, falling back to the
// cross-provider defaults when the provider has no dedicated list.
func knownModels(providerID string) []string {
	if models, ok := providerModels[providerID]; ok {
		return models
	}
	return defaultModels
}
