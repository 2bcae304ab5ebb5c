package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore  = (*DocumentStore)(nil)
	_ driven.ChunkStore     = (*DocumentStore)(nil)
	_ driven.VectorSearcher = (*DocumentStore)(nil)
)

type chunkRecord struct {
	chunk        domain.Chunk
	claimedBy    string
	claimedUntil int64
}

// DocumentStore is an in-memory implementation of the document, chunk and
// vector ports. Similarity is computed by brute force.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]*chunkRecord
	byID      map[string]*chunkRecord
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]*chunkRecord),
		byID:      make(map[string]*chunkRecord),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document owned by ownerID.
func (s *DocumentStore) GetDocument(_ context.Context, ownerID, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByID retrieves a document regardless of owner.
func (s *DocumentStore) GetDocumentByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns an owner's documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, ownerID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	sortNewestFirst(docs)
	return docs, nil
}

// ListDocumentsByStatus returns documents in a status across all owners.
func (s *DocumentStore) ListDocumentsByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.Status == status {
			docs = append(docs, doc)
		}
	}
	sortNewestFirst(docs)
	return docs, nil
}

// UpdateDocumentStatus sets a document's status.
func (s *DocumentStore) UpdateDocumentStatus(_ context.Context, id string, status domain.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropChunks(id)
	delete(s.documents, id)
	return nil
}

// ReplaceChunks swaps a document's chunks for a new set.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropChunks(documentID)
	records := make([]*chunkRecord, 0, len(chunks))
	for i := range chunks {
		rec := &chunkRecord{chunk: cloneChunk(chunks[i])}
		rec.chunk.DocumentID = documentID
		records = append(records, rec)
		s.byID[rec.chunk.ID] = rec
	}
	s.chunks[documentID] = records
	return nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.chunks[documentID]
	chunks := make([]domain.Chunk, 0, len(records))
	for _, rec := range records {
		chunks = append(chunks, cloneChunk(rec.chunk))
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

// ClaimPendingChunks claims up to claim.Limit unclaimed pending or failed chunks.
func (s *DocumentStore) ClaimPendingChunks(_ context.Context, claim domain.ChunkClaim) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.scopedDocuments(claim.OwnerID, claim.DocumentID)
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	var claimed []domain.Chunk
	for _, doc := range docs {
		for _, rec := range s.chunks[doc.ID] {
			if claim.Limit > 0 && len(claimed) >= claim.Limit {
				return claimed, nil
			}
			st := rec.chunk.Status
			if st != domain.ChunkPending && st != domain.ChunkFailed {
				continue
			}
			if rec.claimedBy != "" && rec.claimedUntil > claim.Now {
				continue
			}
			rec.claimedBy = claim.Worker
			rec.claimedUntil = claim.LeaseUntil
			claimed = append(claimed, cloneChunk(rec.chunk))
		}
	}
	return claimed, nil
}

// RenewClaims extends every lease worker still holds.
func (s *DocumentStore) RenewClaims(_ context.Context, worker string, leaseUntil int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byID {
		if rec.claimedBy == worker {
			rec.claimedUntil = leaseUntil
		}
	}
	return nil
}

// SaveEmbedding stores a vector and marks the chunk embedded.
func (s *DocumentStore) SaveEmbedding(_ context.Context, chunkID, worker string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.claimedRecord(chunkID, worker)
	if err != nil {
		return err
	}
	rec.chunk.Embedding = append([]float32(nil), embedding...)
	rec.chunk.Status = domain.ChunkEmbedded
	delete(rec.chunk.Metadata, domain.MetaFailureReason)
	rec.claimedBy, rec.claimedUntil = "", 0
	return nil
}

// MarkChunk sets a non-embedded status and merges metadata.
func (s *DocumentStore) MarkChunk(
	_ context.Context, chunkID, worker string, status domain.ChunkStatus, metadata map[string]any,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.claimedRecord(chunkID, worker)
	if err != nil {
		return err
	}
	rec.chunk.Status = status
	rec.chunk.Embedding = nil
	if rec.chunk.Metadata == nil {
		rec.chunk.Metadata = make(map[string]any)
	}
	for k, v := range metadata {
		rec.chunk.Metadata[k] = v
	}
	rec.claimedBy, rec.claimedUntil = "", 0
	return nil
}

// claimedRecord returns the chunk if worker is empty or still holds it.
// Caller holds mu.
func (s *DocumentStore) claimedRecord(chunkID, worker string) (*chunkRecord, error) {
	rec, ok := s.byID[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if worker != "" && rec.claimedBy != worker {
		return nil, domain.ErrClaimLost
	}
	return rec, nil
}

// CountChunks aggregates a document's chunks by status.
func (s *DocumentStore) CountChunks(_ context.Context, documentID string) (domain.ChunkCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts domain.ChunkCounts
	for _, rec := range s.chunks[documentID] {
		counts.Total++
		switch rec.chunk.Status {
		case domain.ChunkEmbedded:
			counts.Embedded++
		case domain.ChunkSkipped:
			counts.Skipped++
		case domain.ChunkFailed:
			counts.Failed++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}

// SimilaritySearch ranks embedded chunks in scope by cosine similarity.
func (s *DocumentStore) SimilaritySearch(_ context.Context, q domain.RetrievalQuery) ([]domain.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.ChunkMatch
	for _, doc := range s.scopedDocuments(q.OwnerID, q.DocumentID) {
		for _, rec := range s.chunks[doc.ID] {
			if rec.chunk.Status != domain.ChunkEmbedded {
				continue
			}
			score := domain.CosineSimilarity(q.Vector, rec.chunk.Embedding)
			if score < q.Threshold {
				continue
			}
			matches = append(matches, domain.ChunkMatch{
				Chunk:        cloneChunk(rec.chunk),
				DocumentName: doc.Name,
				Score:        score,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// RecentChunks returns the most recently created chunks in scope.
func (s *DocumentStore) RecentChunks(_ context.Context, ownerID, documentID string, limit int) ([]domain.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.ChunkMatch
	for _, doc := range s.scopedDocuments(ownerID, documentID) {
		for _, rec := range s.chunks[doc.ID] {
			matches = append(matches, domain.ChunkMatch{
				Chunk:        cloneChunk(rec.chunk),
				DocumentName: doc.Name,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Chunk, matches[j].Chunk
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.Position < b.Position
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// scopedDocuments must be called with the lock held.
func (s *DocumentStore) scopedDocuments(ownerID, documentID string) []domain.Document {
	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.OwnerID != ownerID {
			continue
		}
		if documentID != "" && doc.ID != documentID {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (s *DocumentStore) dropChunks(documentID string) {
	for _, rec := range s.chunks[documentID] {
		delete(s.byID, rec.chunk.ID)
	}
	delete(s.chunks, documentID)
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	c.Metadata = meta
	return c
}

func sortNewestFirst(docs []domain.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}
