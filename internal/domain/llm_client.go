package domain

import "context"

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSONMode asks the provider to emit a single JSON object.
	JSONMode bool
}

// TokenUsage is the token accounting reported by a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// ChatResponse carries the model output and its token usage.
type ChatResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// ChatModel is the capability to send messages to an LLM and receive text.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Provider names the backend, e.g. "openai".
	Provider() string
}
