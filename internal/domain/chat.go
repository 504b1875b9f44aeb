package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// services, the stores and the completion gateways.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is everything a completion gateway needs for one call.
// Messages are ordered oldest first and never include the system directive.
type CompletionRequest struct {
	System      string
	Messages    []ChatMessage
	Temperature *float64
	MaxTokens   int
}
