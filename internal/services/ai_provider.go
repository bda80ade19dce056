package services

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type AIMessage struct {
	Role    string
	Content string
}

type AIUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type GenerateRequest struct {
	Model    string
	Messages []AIMessage
	// JSONOnly asks the provider for a strict JSON response body.
	JSONOnly bool
}

type GenerateResult struct {
	Text              string
	Model             string
	ProviderRequestID string
	Usage             AIUsage
}

// StreamHandler receives each text delta as it arrives. Returning an error
// aborts the stream.
type StreamHandler func(delta string) error

// AIClient is the provider contract the pipeline calls. One implementation
// per provider; the pipeline never imports vendor SDKs directly.
type AIClient interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta StreamHandler) (GenerateResult, error)
}
