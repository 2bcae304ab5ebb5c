// Package openai answers questions with the OpenAI chat completions API, or
// any endpoint that speaks the same protocol.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second

	// errorBodyLimit caps how much of a failed response ends up in an error.
	errorBodyLimit = 512
)

// LLMConfig configures the client. Only APIKey is required.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type LLMService struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrInvalidInput)
	}
	svc := &LLMService{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
	if svc.baseURL == "" {
		svc.baseURL = DefaultBaseURL
	}
	if svc.model == "" {
		svc.model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		svc.http.Timeout = DefaultLLMTimeout
	}
	return svc, nil
}

// Complete sends the system prompt, when set, ahead of the user prompt.
func (s *LLMService) Complete(ctx context.Context, systemPrompt, userPrompt string, opts driven.CompletionOptions) (string, error) {
	req := completionRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, message{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, message{Role: "user", Content: userPrompt})

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}
	body, err := s.do(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", unavailable("decode response", err)
	}
	switch {
	case resp.Error != nil:
		return "", fmt.Errorf("openai: %s: %w", resp.Error.Message, domain.ErrProviderUnavailable)
	case len(resp.Choices) == 0:
		return "", fmt.Errorf("openai: empty completion: %w", domain.ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/models", http.NoBody)
	return err
}

func (s *LLMService) Close() error {
	return nil
}

// do sends an authenticated request and returns the body of a 200 response.
func (s *LLMService) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, unavailable(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("openai: %s returned %d: %s: %w",
			path, resp.StatusCode, bytes.TrimSpace(snippet), domain.ErrProviderUnavailable)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("read response", err)
	}
	return data, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("openai: %s: %w: %w", op, domain.ErrProviderUnavailable, err)
}
