package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// ObjectStore holds raw uploaded blobs behind opaque pointers.
type ObjectStore interface {
	// Put stores the blob and returns its pointer and size.
	Put(ctx context.Context, name string, r io.Reader) (pointer string, size int64, err error)

	// Get returns the blob for a pointer.
	Get(ctx context.Context, pointer string) ([]byte, error)

	// Delete removes a blob. Missing blobs are not an error.
	Delete(ctx context.Context, pointer string) error
}

// TextSource resolves a stored document to plain text.
type TextSource interface {
	// FetchText returns the extracted text of the blob behind pointer.
	FetchText(ctx context.Context, doc *domain.Document) (string, error)
}
