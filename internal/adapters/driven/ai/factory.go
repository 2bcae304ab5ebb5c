// Package ai builds the embedding and LLM adapters named in settings.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/verity/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/verity/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/verity/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/verity/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/verity/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

const pingTimeout = 5 * time.Second

// InitResult holds whichever providers came up. A nil field means that
// capability is off; Warnings says why.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string
}

func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise creates both providers. When ping is set each provider is
// checked for reachability; an unreachable provider is left nil and
// reported as a warning. Without an embedder chunks stay pending and
// retrieval falls back to recency; without an LLM questions are refused.
func Initialise(ctx context.Context, settings *domain.AppSettings, ping bool) *InitResult {
	result := &InitResult{}

	embedder, err := connect(ctx, ping, func() (driven.EmbeddingService, error) {
		return CreateEmbeddingService(&settings.Embedding)
	})
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("embedding disabled: %v", err))
	}
	result.EmbeddingService = embedder

	llm, err := connect(ctx, ping, func() (driven.LLMService, error) {
		return CreateLLMService(&settings.LLM)
	})
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("answering disabled: %v", err))
	}
	result.LLMService = llm

	return result
}

// CreateEmbeddingService returns nil, nil when no embedding provider is
// configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
}

// CreateLLMService returns nil, nil when no LLM provider is configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	}
	return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
}

type provider interface {
	Ping(ctx context.Context) error
	Close() error
}

// connect builds a provider and, when ping is set, closes and drops it if
// it does not answer within pingTimeout. An unconfigured provider comes
// back as the zero value with no error.
func connect[T provider](ctx context.Context, ping bool, build func() (T, error)) (T, error) {
	var zero T
	svc, err := build()
	if err != nil {
		return zero, err
	}
	if any(svc) == nil || !ping {
		return svc, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return zero, err
	}
	return svc, nil
}
