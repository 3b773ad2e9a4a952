// Package llm abstracts the chat-completion backends that run workers
// talk to. Backends are interchangeable behind ChatClient.
package llm

import "context"

// Role constants for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn in a chat conversation, already flattened to text.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient produces an assistant reply for a conversation. The provider
// argument selects a configured upstream; implementations may ignore it.
type ChatClient interface {
	Generate(ctx context.Context, messages []Message, model, provider string) (string, error)
}
