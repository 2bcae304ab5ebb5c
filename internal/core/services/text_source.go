package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure TextSource implements the interface.
var _ driven.TextSource = (*TextSource)(nil)

// TextSource reads a document's blob and normalises it to plain text.
type TextSource struct {
	objects  driven.ObjectStore
	registry driven.NormaliserRegistry
}

// NewTextSource creates a text source over an object store and a
// normaliser registry.
func NewTextSource(objects driven.ObjectStore, registry driven.NormaliserRegistry) *TextSource {
	return &TextSource{objects: objects, registry: registry}
}

// FetchText returns the extracted text for doc.
func (t *TextSource) FetchText(ctx context.Context, doc *domain.Document) (string, error) {
	content, err := t.objects.Get(ctx, doc.StoragePointer)
	if err != nil {
		return "", fmt.Errorf("fetch blob: %w", err)
	}

	text, err := t.registry.Normalise(ctx, &domain.RawDocument{
		Name:      doc.Name,
		MediaType: doc.MediaType,
		Content:   content,
	})
	if err != nil {
		return "", fmt.Errorf("normalise %s: %w", doc.Name, err)
	}
	return text, nil
}
