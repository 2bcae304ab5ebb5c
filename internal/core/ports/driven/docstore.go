package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// DocumentStore persists documents.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document owned by ownerID.
	// Returns domain.ErrNotFound when it is missing or owned by someone else.
	GetDocument(ctx context.Context, ownerID, id string) (*domain.Document, error)

	// GetDocumentByID retrieves a document regardless of owner.
	// Used by internal workers that already hold a trusted ID.
	GetDocumentByID(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns an owner's documents, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error)

	// ListDocumentsByStatus returns documents in a status across all owners.
	ListDocumentsByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)

	// UpdateDocumentStatus sets a document's status.
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkStore persists chunks and their embedding state.
type ChunkStore interface {
	// ReplaceChunks atomically swaps a document's chunks for a new set.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document in position order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ClaimPendingChunks atomically claims up to claim.Limit pending or failed
	// chunks whose lease is empty or expired. Claimed chunks are not returned
	// to other callers until the lease expires or the chunk is updated.
	ClaimPendingChunks(ctx context.Context, claim domain.ChunkClaim) ([]domain.Chunk, error)

		// RenewClaims pushes the lease of every chunk still claimed by worker
	// out to leaseUntil (unix nanoseconds).
	RenewClaims(ctx context.Context, worker string, leaseUntil int64) error

	// SaveEmbedding stores a vector, marks the chunk embedded and
	// releases its claim.
	//
	// When worker is set the write only happens if the chunk is still
	// claimed by that worker; otherwise it returns domain.ErrClaimLost and
	// changes nothing. An empty worker writes unconditionally.
	SaveEmbedding(ctx context.Context, chunkID, worker string, embedding []float32) error

	// MarkChunk sets a non-embedded status, clears any vector, merges
	// metadata and releases the claim. worker guards the write as in
	// SaveEmbedding.
	MarkChunk(ctx context.Context, chunkID, worker string, status domain.ChunkStatus, metadata map[string]any) error

	// CountChunks aggregates a document's chunks by status.
	CountChunks(ctx context.Context, documentID string) (domain.ChunkCounts, error)
}
