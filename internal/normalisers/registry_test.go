package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/normalisers/docx"
)

// stubNormaliser returns a fixed label so tests can see which one ran.
type stubNormaliser struct {
	label    string
	types    []string
	priority int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int               { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, _ *domain.RawDocument) (string, error) {
	return s.label, nil
}

func normaliseWith(t *testing.T, r *Registry, mediaType string) (string, error) {
	t.Helper()
	return r.Normalise(context.Background(), &domain.RawDocument{
		Name: "doc", MediaType: mediaType, Content: []byte("body"),
	})
}

func TestRegistry_HighestPriorityWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{label: "low", types: []string{"text/plain"}, priority: 5})
	r.Register(&stubNormaliser{label: "high", types: []string{"text/plain"}, priority: 50})

	got, err := normaliseWith(t, r, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "high", got)
}

func TestRegistry_ExactBeatsWildcard(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{label: "wild", types: []string{"text/*"}, priority: 90})
	r.Register(&stubNormaliser{label: "exact", types: []string{"text/markdown"}, priority: 10})

	got, err := normaliseWith(t, r, "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, "exact", got)

	got, err = normaliseWith(t, r, "text/x-log")
	require.NoError(t, err)
	assert.Equal(t, "wild", got)
}

func TestRegistry_StripsParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{label: "plain", types: []string{"text/plain"}, priority: 5})

	got, err := normaliseWith(t, r, "Text/Plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := normaliseWith(t, r, "application/pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMediaType)

	_, err = r.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDefaultRegistry_SupportedMIMETypes(t *testing.T) {
	types := NewDefaultRegistry().SupportedMIMETypes()

	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/markdown")
	assert.Contains(t, types, "text/html")
	assert.Contains(t, types, docx.MIMEType)
	assert.IsIncreasing(t, types)
}

func TestDefaultRegistry_Markdown(t *testing.T) {
	got, err := NewDefaultRegistry().Normalise(context.Background(), &domain.RawDocument{
		Name:      "policy.md",
		MediaType: "text/markdown",
		Content:   []byte("# Section 1\n\nEncrypt **all** data."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Section 1\n\nEncrypt all data.", got)
}

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		head     []byte
		want     string
	}{
		{"markdown", "policy.md", nil, "text/markdown"},
		{"upper case ext", "POLICY.MD", nil, "text/markdown"},
		{"text", "notes.txt", nil, "text/plain"},
		{"html", "index.html", nil, "text/html"},
		{"docx", "controls.docx", nil, docx.MIMEType},
		{"yaml", "config.yml", nil, "text/yaml"},
		{"sniffed html", "upload", []byte("<!DOCTYPE html><html></html>"), "text/html"},
		{"sniffed text", "upload", []byte("plain words"), "text/plain"},
		{"empty", "upload", nil, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMediaType(tt.filename, tt.head))
		})
	}
}
