package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/verity/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verity/internal/core/domain"
)

// flakySearcher wraps the memory store and fails on demand.
type flakySearcher struct {
	*memstore.DocumentStore
	rankErr   error
	recentErr error
}

func (f *flakySearcher) SimilaritySearch(ctx context.Context, q domain.RetrievalQuery) ([]domain.ChunkMatch, error) {
	if f.rankErr != nil {
		return nil, f.rankErr
	}
	return f.DocumentStore.SimilaritySearch(ctx, q)
}

func (f *flakySearcher) RecentChunks(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChunkMatch, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.DocumentStore.RecentChunks(ctx, ownerID, documentID, limit)
}

// embedAll embeds every chunk of a document with keywordVector.
func embedAll(t *testing.T, store *memstore.DocumentStore, documentID string) {
	t.Helper()
	ctx := context.Background()
	chunks, err := store.GetChunks(ctx, documentID)
	require.NoError(t, err)
	for _, c := range chunks {
		require.NoError(t, store.SaveEmbedding(ctx, c.ID, "", keywordVector(c.Content)))
	}
}

func seedReadyDocument(t *testing.T, store *memstore.DocumentStore) {
	t.Helper()
	seedDocument(t, store, "alice", "doc-1", domain.DocumentReady,
		"Section 1 "+words("records", 35),
		"Section 2 "+words("training", 35),
		words("general", 35),
		"Section 1 brief")
	embedAll(t, store, "doc-1")
}

func newTestRetriever(store *memstore.DocumentStore, searcher *flakySearcher, metrics *recordingMetrics) *Retriever {
	if searcher == nil {
		searcher = &flakySearcher{DocumentStore: store}
	}
	if metrics == nil {
		return NewRetriever(store, searcher, domain.DefaultRetrievalSettings(), 30, nil)
	}
	return NewRetriever(store, searcher, domain.DefaultRetrievalSettings(), 30, metrics)
}

func TestRetriever_RankedSearch(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	metrics := newRecordingMetrics()
	retriever := newTestRetriever(store, nil, metrics)

	result, err := retriever.Search(context.Background(), domain.RetrievalQuery{
		Vector:  keywordVector("What does Section 1 say?"),
		OwnerID: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceRanked, result.Provenance)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, "doc-1-chunk-0", result.Matches[0].Chunk.ID)
	assert.InDelta(t, 1.0, result.Matches[0].Score, 1e-6)
	assert.Equal(t, "doc-1.txt", result.Matches[0].DocumentName)
	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].Score, result.Matches[i].Score)
	}
	assert.Equal(t, 1, metrics.retrievals[string(domain.ProvenanceRanked)])
}

func TestRetriever_NeverReturnsShortChunks(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	retriever := newTestRetriever(store, nil, nil)

	for _, vector := range [][]float32{keywordVector("section 1"), nil} {
		result, err := retriever.Search(context.Background(), domain.RetrievalQuery{Vector: vector, OwnerID: "alice"})
		require.NoError(t, err)
		for _, m := range result.Matches {
			assert.NotEqual(t, "doc-1-chunk-3", m.Chunk.ID)
			assert.GreaterOrEqual(t, m.Chunk.WordCount(), 30)
		}
	}
}

func TestRetriever_RespectsThreshold(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	retriever := newTestRetriever(store, nil, nil)

	result, err := retriever.Search(context.Background(), domain.RetrievalQuery{
		Vector:    keywordVector("section 1"),
		OwnerID:   "alice",
		Threshold: 0.9,
	})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	for _, m := range result.Matches {
		assert.GreaterOrEqual(t, m.Score, 0.9)
	}
}

func TestRetriever_RankedEmptyIsNotFallback(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	retriever := newTestRetriever(store, nil, nil)

	result, err := retriever.Search(context.Background(), domain.RetrievalQuery{
		Vector:    []float32{0, 0, 0},
		OwnerID:   "alice",
		Threshold: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceRanked, result.Provenance)
	assert.Empty(t, result.Matches)
}

func TestRetriever_FallbackWithoutVector(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	metrics := newRecordingMetrics()
	retriever := newTestRetriever(store, nil, metrics)

	result, err := retriever.Search(context.Background(), domain.RetrievalQuery{OwnerID: "alice", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceFallback, result.Provenance)
	assert.LessOrEqual(t, len(result.Matches), 2)
	for _, m := range result.Matches {
		assert.Zero(t, m.Score)
	}
	assert.Equal(t, 1, metrics.retrievals[string(domain.ProvenanceFallback)])
}

func TestRetriever_FallbackWhenRankingFails(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	searcher := &flakySearcher{DocumentStore: store, rankErr: domain.ErrVectorIndexUnavailable}
	retriever := newTestRetriever(store, searcher, nil)

	result, err := retriever.Search(context.Background(), domain.RetrievalQuery{
		Vector:  keywordVector("section 1"),
		OwnerID: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceFallback, result.Provenance)
	assert.NotEmpty(t, result.Matches)
}

func TestRetriever_BothPathsFail(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	searcher := &flakySearcher{
		DocumentStore: store,
		rankErr:       domain.ErrVectorIndexUnavailable,
		recentErr:     errors.New("connection reset"),
	}
	retriever := newTestRetriever(store, searcher, nil)

	_, err := retriever.Search(context.Background(), domain.RetrievalQuery{
		Vector:  keywordVector("section 1"),
		OwnerID: "alice",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRetriever_ScopedToOwner(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedReadyDocument(t, store)
	retriever := newTestRetriever(store, nil, nil)

	_, err := retriever.Search(context.Background(), domain.RetrievalQuery{OwnerID: "mallory", DocumentID: "doc-1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	result, err := retriever.Search(context.Background(), domain.RetrievalQuery{
		Vector:  keywordVector("section 1"),
		OwnerID: "mallory",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestRetriever_ScopedDocumentNotReady(t *testing.T) {
	store := memstore.NewDocumentStore()
	seedDocument(t, store, "alice", "doc-2", domain.DocumentProcessing, words("pending", 40))
	retriever := newTestRetriever(store, nil, nil)

	_, err := retriever.Search(context.Background(), domain.RetrievalQuery{OwnerID: "alice", DocumentID: "doc-2"})

	assert.ErrorIs(t, err, domain.ErrDocumentNotReady)
	assert.Contains(t, err.Error(), "processing")
}
