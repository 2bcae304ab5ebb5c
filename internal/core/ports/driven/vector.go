package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// VectorSearcher ranks chunks against a query vector.
type VectorSearcher interface {
	// SimilaritySearch returns embedded chunks in the query scope with cosine
	// similarity at or above the threshold, best first, up to the limit.
	SimilaritySearch(ctx context.Context, query domain.RetrievalQuery) ([]domain.ChunkMatch, error)

	// RecentChunks returns the most recently created chunks in scope.
	// Scores are zero.
	RecentChunks(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChunkMatch, error)
}
