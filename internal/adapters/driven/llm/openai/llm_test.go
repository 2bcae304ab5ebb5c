package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultLLMTimeout, svc.http.Timeout)
	assert.NoError(t, svc.Close())
}

func TestComplete_Messages(t *testing.T) {
	tests := []struct {
		name      string
		system    string
		wantRoles []string
	}{
		{"with system prompt", "Answer from the excerpts only.", []string{"system", "user"}},
		{"without system prompt", "", []string{"user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got completionRequest
			svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Keep logs for a year."}}]}`))
			})

			out, err := svc.Complete(context.Background(), tt.system, "How long are logs kept?",
				driven.CompletionOptions{MaxTokens: 200, Temperature: 0.2})
			require.NoError(t, err)

			assert.Equal(t, "Keep logs for a year.", out)
			assert.Equal(t, DefaultLLMModel, got.Model)
			assert.Equal(t, 200, got.MaxTokens)
			assert.InDelta(t, 0.2, got.Temperature, 1e-9)
			roles := make([]string, len(got.Messages))
			for i, m := range got.Messages {
				roles[i] = m.Role
			}
			assert.Equal(t, tt.wantRoles, roles)
			assert.Equal(t, "How long are logs kept?", got.Messages[len(got.Messages)-1].Content)
		})
	}
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"unauthorised", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`},
		{"overloaded", http.StatusServiceUnavailable, `upstream down`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"error body", http.StatusOK, `{"error":{"message":"quota exceeded"}}`},
		{"malformed", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			_, err := svc.Complete(context.Background(), "s", "u", driven.CompletionOptions{})
			assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		})
	}
}

func TestComplete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "", "u", driven.CompletionOptions{})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestPing(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	assert.NoError(t, svc.Ping(context.Background()))

	rejected := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.ErrorIs(t, rejected.Ping(context.Background()), domain.ErrProviderUnavailable)
}
