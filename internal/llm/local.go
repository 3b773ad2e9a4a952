package llm

import (
	"context"
	"fmt"
	"strings"
)

// LocalEngine is the built-in ChatClient. It produces a deterministic
// assistant reply from the conversation without any network calls, which
// keeps the server usable with no upstream credentials configured.
type LocalEngine struct{}

func NewLocalEngine() *LocalEngine { return &LocalEngine{} }

// Generate builds a reply that acknowledges the latest user turn. The
// output is stable for a given input so run results are reproducible.
func (e *LocalEngine) Generate(ctx context.Context, messages []Message, model, provider string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var prompt, system string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = strings.TrimSpace(m.Content)
		case RoleUser:
			prompt = strings.TrimSpace(m.Content)
		}
	}
	if prompt == "" {
		return "", fmt.Errorf("conversation has no user message")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Acknowledged. Working on: %s", excerpt(prompt, 240))
	if system != "" {
		fmt.Fprintf(&b, "\n\nInstructions applied: %s", excerpt(system, 160))
	}
	fmt.Fprintf(&b, "\n\n(model=%s", model)
	if provider != "" {
		fmt.Fprintf(&b, ", provider=%s", provider)
	}
	b.WriteString(")")
	return b.String(), nil
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
