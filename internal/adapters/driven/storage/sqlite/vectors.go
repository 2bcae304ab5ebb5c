package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// vectorSearcher implements driven.VectorSearcher. Embeddings are stored as
// little-endian float32 blobs and ranked in Go.
type vectorSearcher struct {
	store *Store
}

var _ driven.VectorSearcher = (*vectorSearcher)(nil)

// SimilaritySearch ranks embedded chunks in scope by cosine similarity,
// dropping those below the threshold.
func (s *vectorSearcher) SimilaritySearch(ctx context.Context, q domain.RetrievalQuery) ([]domain.ChunkMatch, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+`, d.name
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE d.owner_id = ? AND (? = '' OR c.document_id = ?)
		  AND c.status = 'embedded' AND c.embedding IS NOT NULL`,
		q.OwnerID, q.DocumentID, q.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("querying embedded chunks: %w", err)
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		m.Score = domain.CosineSimilarity(q.Vector, m.Chunk.Embedding)
		if m.Score < q.Threshold {
			continue
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedded chunks: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// RecentChunks returns the most recently created chunks in scope, whatever
// their embedding status.
func (s *vectorSearcher) RecentChunks(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChunkMatch, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+`, d.name
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE d.owner_id = ? AND (? = '' OR c.document_id = ?)
		ORDER BY c.created_at DESC, c.document_id, c.position
		LIMIT ?`, ownerID, documentID, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent chunks: %w", err)
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent chunks: %w", err)
	}
	return matches, nil
}

func scanMatch(row rowScanner) (*domain.ChunkMatch, error) {
	var m domain.ChunkMatch
	var embedding []byte
	var status, metadata, createdAt string

	if err := row.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.Content, &m.Chunk.Position,
		&embedding, &status, &metadata, &createdAt, &m.DocumentName); err != nil {
		return nil, fmt.Errorf("scanning chunk match: %w", err)
	}

	meta, err := decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	m.Chunk.Embedding = bytesToFloat32Slice(embedding)
	m.Chunk.Status = domain.ChunkStatus(status)
	m.Chunk.Metadata = meta
	m.Chunk.CreatedAt = parseTime(createdAt)
	return &m, nil
}
