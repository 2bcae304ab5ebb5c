package normalisers

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/normalisers/docx"
	"github.com/custodia-labs/verity/internal/normalisers/html"
	"github.com/custodia-labs/verity/internal/normalisers/markdown"
	"github.com/custodia-labs/verity/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches documents to the highest priority normaliser for
// their media type. Exact matches win over "major/*" wildcards.
type Registry struct {
	mu          sync.RWMutex
	normalisers map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{normalisers: make(map[string][]driven.Normaliser)}
}

// NewDefaultRegistry creates a registry with every built-in normaliser.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	return r
}

// Register adds a normaliser under each of its MIME types.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range n.SupportedMIMETypes() {
		mt = BaseMediaType(mt)
		list := append(r.normalisers[mt], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.normalisers[mt] = list
	}
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.normalisers))
	for mt := range r.normalisers {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// Normalise extracts text using the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	n := r.lookup(BaseMediaType(raw.MediaType))
	if n == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, raw.MediaType)
	}
	return n.Normalise(ctx, raw)
}

func (r *Registry) lookup(mediaType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.normalisers[mediaType]; len(list) > 0 {
		return list[0]
	}
	if major, _, ok := strings.Cut(mediaType, "/"); ok {
		if list := r.normalisers[major+"/*"]; len(list) > 0 {
			return list[0]
		}
	}
	return nil
}

// BaseMediaType lowercases a media type and strips its parameters.
func BaseMediaType(mediaType string) string {
	if idx := strings.Index(mediaType, ";"); idx != -1 {
		mediaType = mediaType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// extMediaTypes maps extensions the mime package gets wrong or lacks.
var extMediaTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".xml":      "application/xml",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     docx.MIMEType,
	".pdf":      "application/pdf",
}

// DetectMediaType guesses a media type from a filename and, failing
// that, from the leading bytes of the content.
func DetectMediaType(filename string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		// Check our custom mappings first (avoids Go's mime returning video/mp2t for .ts)
		if t, ok := extMediaTypes[ext]; ok {
			return t
		}
		if t := mime.TypeByExtension(ext); t != "" {
			return BaseMediaType(t)
		}
	}

	if len(head) == 0 {
		return "text/plain"
	}
	return BaseMediaType(http.DetectContentType(head))
}
