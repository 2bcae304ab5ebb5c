package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
)

// Retriever finds the chunks most relevant to a query vector.
//
// The ranked path uses similarity search. When the query has no vector or
// ranking fails, the most recent chunks in scope are returned instead and
// tagged as fallback so callers can tell the two apart.
type Retriever struct {
	docStore driven.DocumentStore
	searcher driven.VectorSearcher
	settings domain.RetrievalSettings
	minWords int
	metrics  driven.PipelineMetrics
}

// NewRetriever creates a new retriever.
// Matches shorter than minWords are dropped from both paths.
func NewRetriever(
	docStore driven.DocumentStore,
	searcher driven.VectorSearcher,
	settings domain.RetrievalSettings,
	minWords int,
	metrics driven.PipelineMetrics,
) *Retriever {
	defaults := domain.DefaultRetrievalSettings()
	if settings.Limit <= 0 {
		settings.Limit = defaults.Limit
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Retriever{
		docStore: docStore,
		searcher: searcher,
		settings: settings,
		minWords: minWords,
		metrics:  metrics,
	}
}

// Search returns matches for q. A zero Limit or Threshold takes the
// configured value. An error is returned only when the scope check fails
// or both paths fail.
func (r *Retriever) Search(ctx context.Context, q domain.RetrievalQuery) (*domain.RetrievalResult, error) {
	if q.DocumentID != "" {
		doc, err := r.docStore.GetDocument(ctx, q.OwnerID, q.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("get document: %w", err)
		}
		if doc.Status != domain.DocumentReady {
			return nil, fmt.Errorf("%w: document is %s", domain.ErrDocumentNotReady, doc.Status)
		}
	}
	if q.Limit <= 0 {
		q.Limit = r.settings.Limit
	}
	if q.Threshold == 0 {
		q.Threshold = r.settings.Threshold
	}

	var rankErr error
	if len(q.Vector) > 0 {
		matches, err := r.searcher.SimilaritySearch(ctx, q)
		if err == nil {
			logger.Debug("Ranked retrieval: %d matches at threshold %.2f", len(matches), q.Threshold)
			return r.result(matches, domain.ProvenanceRanked), nil
		}
		rankErr = err
		logger.Warn("Similarity search failed, using recent chunks: %v", err)
	}

	matches, err := r.searcher.RecentChunks(ctx, q.OwnerID, q.DocumentID, q.Limit)
	if err != nil {
		if rankErr != nil {
			return nil, fmt.Errorf("retrieve chunks: %w", errors.Join(rankErr, err))
		}
		return nil, fmt.Errorf("retrieve recent chunks: %w", err)
	}
	for i := range matches {
		matches[i].Score = 0
	}
	logger.Debug("Fallback retrieval: %d recent chunks", len(matches))
	return r.result(matches, domain.ProvenanceFallback), nil
}

func (r *Retriever) result(matches []domain.ChunkMatch, provenance domain.Provenance) *domain.RetrievalResult {
	kept := make([]domain.ChunkMatch, 0, len(matches))
	for _, m := range matches {
		if m.Chunk.WordCount() < r.minWords {
			continue
		}
		kept = append(kept, m)
	}
	r.metrics.RetrievalServed(string(provenance))
	return &domain.RetrievalResult{Matches: kept, Provenance: provenance}
}
