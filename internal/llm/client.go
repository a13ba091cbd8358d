// Package llm provides the completion interface the pipeline generates text
// through, a Genkit-backed implementation, and an ordered fallback chain
// across providers.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversational turn sent to a model.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a provider-agnostic completion call.
type CompletionRequest struct {
	// System is the persona and task instruction, kept separate from the
	// message history.
	System string

	// Messages is the ordered conversation, ending with the user turn the
	// model should answer.
	Messages []Message
}

// Client completes a conversation into text.
// Implementations must be safe for concurrent use.
type Client interface {
	// Name identifies the client in logs and errors.
	Name() string

	// Complete generates the assistant's next message.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
