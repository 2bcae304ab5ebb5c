package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawDocument_Fields(t *testing.T) {
	raw := RawDocument{Name: "policy.md", MediaType: "text/markdown", Content: []byte("# Policy")}

	assert.Equal(t, "policy.md", raw.Name)
	assert.Equal(t, "text/markdown", raw.MediaType)
	assert.Len(t, raw.Content, 8)
}
