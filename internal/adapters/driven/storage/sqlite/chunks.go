package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

const chunkColumns = `c.id, c.document_id, c.content, c.position, c.embedding, c.status, c.metadata, c.created_at`

// ReplaceChunks swaps a document's chunks for a new set in one transaction.
func (s *chunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, embedding, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return err
		}
		status := c.Status
		if status == "" {
			status = domain.ChunkPending
		}
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Content, c.Position,
			float32SliceToBytes(c.Embedding), string(status), meta, formatTime(c.CreatedAt)); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *chunkStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+`
		FROM chunks c WHERE c.document_id = ? ORDER BY c.position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ClaimPendingChunks leases up to claim.Limit pending or failed chunks to
// claim.Worker. Chunks held by an unexpired lease are not returned.
func (s *chunkStore) ClaimPendingChunks(ctx context.Context, claim domain.ChunkClaim) ([]domain.Chunk, error) {
	limit := claim.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.store.db.QueryContext(ctx, `
		UPDATE chunks SET claimed_by = ?, claimed_until = ?
		WHERE id IN (
			SELECT k.id FROM chunks k
			JOIN documents d ON d.id = k.document_id
			WHERE d.owner_id = ?
			  AND (? = '' OR k.document_id = ?)
			  AND k.status IN ('pending', 'failed')
			  AND (k.claimed_by IS NULL OR k.claimed_until <= ?)
			ORDER BY d.created_at, d.id, k.position
			LIMIT ?
		)
		RETURNING id, document_id, content, position, embedding, status, metadata, created_at`,
		claim.Worker, claim.LeaseUntil, claim.OwnerID,
		claim.DocumentID, claim.DocumentID, claim.Now, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming chunks: %w", err)
	}
	defer rows.Close()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING order is unspecified.
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Position < chunks[j].Position
	})
	return chunks, nil
}

// RenewClaims extends every lease worker still holds.
func (s *chunkStore) RenewClaims(ctx context.Context, worker string, leaseUntil int64) error {
	if _, err := s.store.db.ExecContext(ctx,
		"UPDATE chunks SET claimed_until = ? WHERE claimed_by = ?", leaseUntil, worker); err != nil {
		return fmt.Errorf("renewing claims: %w", err)
	}
	return nil
}

// SaveEmbedding stores a vector, marks the chunk embedded and releases its
// claim. A non-empty worker must still hold the claim.
func (s *chunkStore) SaveEmbedding(ctx context.Context, chunkID, worker string, embedding []float32) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE chunks SET
			embedding = ?,
			status = 'embedded',
			metadata = json_remove(metadata, '$.`+domain.MetaFailureReason+`'),
			claimed_by = NULL,
			claimed_until = 0
		WHERE id = ? AND (? = '' OR claimed_by = ?)
	`, float32SliceToBytes(embedding), chunkID, worker, worker)
	if err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}
	return s.requireClaimed(ctx, res, chunkID)
}

// MarkChunk sets a non-embedded status, merges metadata and releases the
// claim. A non-empty worker must still hold the claim.
func (s *chunkStore) MarkChunk(
	ctx context.Context, chunkID, worker string, status domain.ChunkStatus, metadata map[string]any,
) error {
	patch, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE chunks SET
			status = ?,
			embedding = NULL,
			metadata = json_patch(metadata, ?),
			claimed_by = NULL,
			claimed_until = 0
		WHERE id = ? AND (? = '' OR claimed_by = ?)
	`, string(status), patch, chunkID, worker, worker)
	if err != nil {
		return fmt.Errorf("marking chunk: %w", err)
	}
	return s.requireClaimed(ctx, res, chunkID)
}

// requireClaimed tells a missing chunk (ErrNotFound) apart from one whose
// claim moved on (ErrClaimLost) when a guarded update touched nothing.
func (s *chunkStore) requireClaimed(ctx context.Context, res sql.Result, chunkID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.store.db.QueryRowContext(ctx, "SELECT 1 FROM chunks WHERE id = ?", chunkID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("checking chunk: %w", err)
	}
	return domain.ErrClaimLost
}

// CountChunks aggregates a document's chunks by status.
func (s *chunkStore) CountChunks(ctx context.Context, documentID string) (domain.ChunkCounts, error) {
	var counts domain.ChunkCounts

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM chunks WHERE document_id = ? GROUP BY status", documentID)
	if err != nil {
		return counts, fmt.Errorf("counting chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scanning chunk count: %w", err)
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
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("iterating chunk counts: %w", err)
	}
	return counts, nil
}

func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var c domain.Chunk
	var embedding []byte
	var status, metadata, createdAt string

	if err := row.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Position,
		&embedding, &status, &metadata, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	meta, err := decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	c.Embedding = bytesToFloat32Slice(embedding)
	c.Status = domain.ChunkStatus(status)
	c.Metadata = meta
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
