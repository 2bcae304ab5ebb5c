package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

type vectorSearcher struct {
	db *sql.DB
}

var _ driven.VectorSearcher = (*vectorSearcher)(nil)

// SimilaritySearch ranks embedded chunks by cosine similarity, computed as
// one minus pgvector's cosine distance.
func (s *vectorSearcher) SimilaritySearch(ctx context.Context, q domain.RetrievalQuery) ([]domain.ChunkMatch, error) {
	lit, err := encodeVectorLiteral(q.Vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+chunkColumns+`, d.name, 1 - (c.embedding <=> $1::vector) AS score
FROM chunks c JOIN documents d ON d.id = c.document_id
WHERE d.owner_id = $2
  AND ($3 = '' OR c.document_id = $3)
  AND c.status = 'embedded'
  AND c.embedding IS NOT NULL
  AND 1 - (c.embedding <=> $1::vector) >= $4
ORDER BY c.embedding <=> $1::vector
LIMIT $5`, lit, q.OwnerID, q.DocumentID, q.Threshold, limitArg(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		var m domain.ChunkMatch
		c, err := scanChunk(rows, &m.DocumentName, &m.Score)
		if err != nil {
			return nil, err
		}
		m.Chunk = *c
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *vectorSearcher) RecentChunks(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChunkMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+chunkColumns+`, d.name
FROM chunks c JOIN documents d ON d.id = c.document_id
WHERE d.owner_id = $1 AND ($2 = '' OR c.document_id = $2)
ORDER BY c.created_at DESC, c.document_id, c.position
LIMIT $3`, ownerID, documentID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("recent chunks: %w", err)
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		var m domain.ChunkMatch
		c, err := scanChunk(rows, &m.DocumentName)
		if err != nil {
			return nil, err
		}
		m.Chunk = *c
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
