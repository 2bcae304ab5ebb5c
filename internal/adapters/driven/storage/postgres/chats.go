package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

type chatStore struct {
	db *sql.DB
}

var _ driven.ChatStore = (*chatStore)(nil)

func (s *chatStore) SaveExchange(ctx context.Context, ex *domain.ChatExchange) error {
	if ex == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO chat_exchanges (id, user_id, document_id, query, answer, mode, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ex.ID, ex.UserID, nullString(ex.DocumentID), ex.Query, ex.Answer, string(ex.Mode), ex.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save exchange: %w", err)
	}
	return nil
}

func (s *chatStore) ListExchanges(ctx context.Context, userID, documentID string, limit int) ([]domain.ChatExchange, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, document_id, query, answer, mode, created_at
FROM chat_exchanges
WHERE user_id = $1 AND ($2 = '' OR document_id = $2)
ORDER BY created_at DESC
LIMIT $3`, userID, documentID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatExchange
	for rows.Next() {
		var ex domain.ChatExchange
		var docID sql.NullString
		var mode string
		if err := rows.Scan(&ex.ID, &ex.UserID, &docID, &ex.Query, &ex.Answer, &mode, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.DocumentID = docID.String
		ex.Mode = domain.AnswerMode(mode)
		out = append(out, ex)
	}
	return out, rows.Err()
}

type taskStore struct {
	db *sql.DB
}

var _ driven.TaskStore = (*taskStore)(nil)

const taskColumns = `id, owner_id, description, status, source, document_id, created_at, updated_at`

func (s *taskStore) SaveTask(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  description = EXCLUDED.description,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at`,
		task.ID, task.OwnerID, task.Description, string(task.Status), string(task.Source),
		nullString(task.DocumentID), task.CreatedAt.UTC(), task.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *taskStore) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanTask(row)
}

func (s *taskStore) ListTasks(ctx context.Context, ownerID string, filter domain.TaskFilter) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+`
FROM tasks
WHERE owner_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR document_id = $3)
ORDER BY created_at, id`, ownerID, string(filter.Status), filter.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

func (s *taskStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status, source string
	var docID sql.NullString
	if err := row.Scan(&task.ID, &task.OwnerID, &task.Description, &status, &source,
		&docID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.Status = domain.TaskStatus(status)
	task.Source = domain.TaskSource(source)
	task.DocumentID = docID.String
	return &task, nil
}
