package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, New().SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "heading", input: "# Access Control\n\nBody", expected: "Access Control\n\nBody"},
		{name: "link", input: "See [the policy](https://example.com).", expected: "See the policy."},
		{name: "image", input: "![logo](logo.png)Text", expected: "Text"},
		{name: "bold", input: "This is **required** by __law__", expected: "This is required by law"},
		{name: "inline code", input: "Set `mfa=true` now", expected: "Set mfa=true now"},
		{name: "code fence", input: "Before\n```\ncode\n```\nAfter", expected: "Before\n\nAfter"},
		{name: "blockquote", input: "> quoted", expected: "quoted"},
		{name: "list kept", input: "- one\n- two", expected: "- one\n- two"},
		{name: "rule", input: "a\n\n---\n\nb", expected: "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Strip(tt.input))
		})
	}
}

func TestNormalise(t *testing.T) {
	text, err := New().Normalise(context.Background(), &domain.RawDocument{
		Name: "policy.md", MediaType: "text/markdown",
		Content: []byte("# Section 1\n\nPasswords **must** rotate."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Section 1\n\nPasswords must rotate.", text)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
