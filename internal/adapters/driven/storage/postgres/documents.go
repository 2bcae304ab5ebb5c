package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

type documentStore struct {
	db *sql.DB
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, owner_id, name, media_type, size, storage_pointer, status, created_at, updated_at`

func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  media_type = EXCLUDED.media_type,
  size = EXCLUDED.size,
  storage_pointer = EXCLUDED.storage_pointer,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, doc.ID, doc.OwnerID, doc.Name, doc.MediaType, doc.Size, doc.StoragePointer,
		string(doc.Status), doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *documentStore) GetDocument(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanDocument(row)
}

func (s *documentStore) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return s.list(ctx, `SELECT `+documentColumns+` FROM documents
WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
}

func (s *documentStore) ListDocumentsByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	return s.list(ctx, `SELECT `+documentColumns+` FROM documents
WHERE status = $1 ORDER BY created_at DESC, id`, string(status))
}

func (s *documentStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res)
}

func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *documentStore) list(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.MediaType, &doc.Size,
		&doc.StoragePointer, &status, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
