package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before they are saved by building
// the adapter and pinging it. Unconfigured settings pass.
type ConfigValidator struct{}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	svc, err := connect(context.Background(), true, func() (driven.EmbeddingService, error) {
		return CreateEmbeddingService(settings)
	})
	if err != nil {
		return unreachable(domain.ErrEmbeddingUnavailable, err)
	}
	if svc != nil {
		_ = svc.Close()
	}
	return nil
}

func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	svc, err := connect(context.Background(), true, func() (driven.LLMService, error) {
		return CreateLLMService(settings)
	})
	if err != nil {
		return unreachable(domain.ErrLLMUnavailable, err)
	}
	if svc != nil {
		_ = svc.Close()
	}
	return nil
}

func unreachable(kind, err error) error {
	return fmt.Errorf("%w: %w. Run 'verity settings' to fix", kind, err)
}
