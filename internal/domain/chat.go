package domain

// ChatMessage is the provider-agnostic chat message shape used by the usecase
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is a single completion request. Zero sampling values are left to
// the provider defaults.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}
