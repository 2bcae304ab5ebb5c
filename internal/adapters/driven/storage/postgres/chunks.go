package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

type chunkStore struct {
	db *sql.DB
}

var _ driven.ChunkStore = (*chunkStore)(nil)

const chunkColumns = `c.id, c.document_id, c.content, c.position, c.embedding::text, c.status, c.metadata, c.created_at`

func (s *chunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (id, document_id, content, position, embedding, status, metadata, created_at)
VALUES ($1,$2,$3,$4,$5::vector,$6,$7,$8)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return err
		}
		var vec sql.NullString
		if len(c.Embedding) > 0 {
			lit, err := encodeVectorLiteral(c.Embedding)
			if err != nil {
				return err
			}
			vec = sql.NullString{String: lit, Valid: true}
		}
		status := c.Status
		if status == "" {
			status = domain.ChunkPending
		}
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Content, c.Position,
			vec, string(status), meta, c.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Position, err)
		}
	}
	return tx.Commit()
}

func (s *chunkStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+`
FROM chunks c WHERE c.document_id = $1 ORDER BY c.position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ClaimPendingChunks leases pending or failed chunks to claim.Worker. Rows
// locked by a concurrent claim are skipped rather than waited on.
func (s *chunkStore) ClaimPendingChunks(ctx context.Context, claim domain.ChunkClaim) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
WITH picked AS (
  SELECT k.id FROM chunks k
  JOIN documents d ON d.id = k.document_id
  WHERE d.owner_id = $1
    AND ($2 = '' OR k.document_id = $2)
    AND k.status IN ('pending', 'failed')
    AND (k.claimed_by IS NULL OR k.claimed_until <= $3)
  ORDER BY d.created_at, d.id, k.position
  LIMIT $4
  FOR UPDATE OF k SKIP LOCKED
)
UPDATE chunks c SET claimed_by = $5, claimed_until = $6
FROM picked WHERE c.id = picked.id
RETURNING `+chunkColumns,
		claim.OwnerID, claim.DocumentID, claim.Now, limitArg(claim.Limit), claim.Worker, claim.LeaseUntil)
	if err != nil {
		return nil, fmt.Errorf("claim chunks: %w", err)
	}
	defer rows.Close()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Position < chunks[j].Position
	})
	return chunks, nil
}

func (s *chunkStore) RenewClaims(ctx context.Context, worker string, leaseUntil int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET claimed_until = $2 WHERE claimed_by = $1`, worker, leaseUntil); err != nil {
		return fmt.Errorf("renew claims: %w", err)
	}
	return nil
}

func (s *chunkStore) SaveEmbedding(ctx context.Context, chunkID, worker string, embedding []float32) error {
	lit, err := encodeVectorLiteral(embedding)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE chunks SET
  embedding = $2::vector,
  status = 'embedded',
  metadata = metadata - '`+domain.MetaFailureReason+`',
  claimed_by = NULL,
  claimed_until = 0
WHERE id = $1 AND ($3 = '' OR claimed_by = $3)`, chunkID, lit, worker)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return s.requireClaimed(ctx, res, chunkID)
}

func (s *chunkStore) MarkChunk(
	ctx context.Context, chunkID, worker string, status domain.ChunkStatus, metadata map[string]any,
) error {
	patch, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE chunks SET
  status = $2,
  embedding = NULL,
  metadata = metadata || $3::jsonb,
  claimed_by = NULL,
  claimed_until = 0
WHERE id = $1 AND ($4 = '' OR claimed_by = $4)`, chunkID, string(status), patch, worker)
	if err != nil {
		return fmt.Errorf("mark chunk: %w", err)
	}
	return s.requireClaimed(ctx, res, chunkID)
}

// requireClaimed separates a missing chunk from a lost claim after a
// guarded update matched no row.
func (s *chunkStore) requireClaimed(ctx context.Context, res sql.Result, chunkID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chunks WHERE id = $1)`, chunkID).Scan(&exists); err != nil {
		return fmt.Errorf("check chunk: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrClaimLost
}

func (s *chunkStore) CountChunks(ctx context.Context, documentID string) (domain.ChunkCounts, error) {
	var counts domain.ChunkCounts
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM chunks WHERE document_id = $1 GROUP BY status`, documentID)
	if err != nil {
		return counts, fmt.Errorf("count chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scan chunk count: %w", err)
		}
		counts.Total += n
		switch domain.ChunkStatus(status) {
		case domain.ChunkEmbedded:
			counts.Embedded += n
		case domain.ChunkSkipped:
			counts.Skipped += n
		case domain.ChunkFailed:
			counts.Failed += n
		default:
			counts.Pending += n
		}
	}
	return counts, rows.Err()
}

func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

func scanChunk(row rowScanner, extra ...any) (*domain.Chunk, error) {
	var c domain.Chunk
	var vec sql.NullString
	var status string
	var meta []byte
	dest := append([]any{&c.ID, &c.DocumentID, &c.Content, &c.Position, &vec, &status, &meta, &c.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	embedding, err := decodeVectorLiteral(vec.String)
	if err != nil {
		return nil, err
	}
	metadata, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	c.Embedding = embedding
	c.Status = domain.ChunkStatus(status)
	c.Metadata = metadata
	return &c, nil
}
