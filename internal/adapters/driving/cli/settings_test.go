package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"password hidden", "postgres://verity:s3cret@db:5432/verity", "postgres://verity:****@db:5432/verity"},
		{"no password", "postgres://verity@db/verity", "postgres://verity@db/verity"},
		{"no credentials", "postgres://db/verity", "postgres://db/verity"},
		{"not a url", "host=db user=verity", "host=db user=verity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskDSN(tt.input))
		})
	}
}

func newPromptCmd(input string) (*cobra.Command, *bytes.Buffer) {
	out := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(out)
	return cmd, out
}

func TestChooseProvider(t *testing.T) {
	t.Run("argument with default model", func(t *testing.T) {
		resetFlags()
		cmd, _ := newPromptCmd("")

		provider, model, key, err := chooseProvider(cmd, []string{"Ollama"}, embeddingProviders, domain.DefaultEmbeddingModels())

		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderOllama, provider)
		assert.Equal(t, "nomic-embed-text", model)
		assert.Empty(t, key)
	})

	t.Run("provider not offered", func(t *testing.T) {
		resetFlags()
		cmd, _ := newPromptCmd("")

		_, _, _, err := chooseProvider(cmd, []string{"anthropic"}, embeddingProviders, domain.DefaultEmbeddingModels())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported provider")
	})

	t.Run("key from environment", func(t *testing.T) {
		resetFlags()
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
		cmd, _ := newPromptCmd("")

		provider, model, key, err := chooseProvider(cmd, []string{"anthropic"}, llmProviders, domain.DefaultLLMModels())

		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderAnthropic, provider)
		assert.Equal(t, "claude-3-5-sonnet-latest", model)
		assert.Equal(t, "sk-ant-from-env", key)
	})

	t.Run("interactive choice and key", func(t *testing.T) {
		resetFlags()
		t.Setenv("OPENAI_API_KEY", "")
		settingsModel = "text-embedding-3-large"
		defer func() { settingsModel = "" }()
		cmd, out := newPromptCmd("2\nsk-typed-key\n")

		provider, model, key, err := chooseProvider(cmd, nil, embeddingProviders, domain.DefaultEmbeddingModels())

		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderOpenAI, provider)
		assert.Equal(t, "text-embedding-3-large", model)
		assert.Equal(t, "sk-typed-key", key)
		assert.Contains(t, out.String(), "Select Provider")
		assert.Contains(t, out.String(), "OPENAI_API_KEY")
	})

	t.Run("missing key", func(t *testing.T) {
		resetFlags()
		t.Setenv("OPENAI_API_KEY", "")
		cmd, _ := newPromptCmd("")

		_, _, _, err := chooseProvider(cmd, []string{"openai"}, llmProviders, domain.DefaultLLMModels())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})
}

func TestSettingsEmbeddingCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "embedding", "openai", "--api-key", "sk-flag-key", "-m", "text-embedding-3-small")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, ts.settings.provider)
	assert.Equal(t, "text-embedding-3-small", ts.settings.model)
	assert.Equal(t, "sk-flag-key", ts.settings.apiKey)
	assert.Contains(t, out, "Validating configuration... OK")
	assert.Contains(t, out, "must be reprocessed")
}

func TestSettingsLLMCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "llm", "ollama")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, ts.settings.provider)
	assert.Equal(t, "llama3.2", ts.settings.model)
	assert.Contains(t, out, "LLM provider configured: Ollama (local) (llama3.2)")
}

func TestSettingsShowCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.UserID = "alice"
	ts.settings.settings.Storage = domain.StorageSettings{
		Driver: domain.StoragePostgres,
		DSN:    "postgres://verity:hunter2@db/verity",
	}
	ts.settings.validateErr = errors.New("embedding provider not configured")

	out, err := executeCommand("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "ID: alice")
	assert.Contains(t, out, "Threshold: 0.30")
	assert.Contains(t, out, "postgres://verity:****@db/verity")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "Warning: embedding provider not configured")
}
