package driven

import "context"

// LLMService writes answers. When it is nil, questions cannot be answered
// and callers report provider_unavailable.
type LLMService interface {
	// Complete sends one system prompt and one user prompt and returns the
	// model's reply. Transport and provider failures wrap
	// domain.ErrProviderUnavailable.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error)

	// ModelName returns the configured model.
	ModelName() string

	// Ping checks the provider is reachable and the credentials are accepted
	// without running inference.
	Ping(ctx context.Context) error

	Close() error
}

// CompletionOptions tunes a single completion. Zero values leave the
// provider default in place.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}
