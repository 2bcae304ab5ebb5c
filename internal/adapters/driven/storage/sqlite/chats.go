package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// chatStore implements driven.ChatStore.
type chatStore struct {
	store *Store
}

var _ driven.ChatStore = (*chatStore)(nil)

// SaveExchange appends an exchange to the log.
func (s *chatStore) SaveExchange(ctx context.Context, ex *domain.ChatExchange) error {
	if ex == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO chat_exchanges (id, user_id, document_id, query, answer, mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ex.ID, ex.UserID, nullString(ex.DocumentID), ex.Query, ex.Answer, string(ex.Mode), formatTime(ex.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving exchange: %w", err)
	}
	return nil
}

// ListExchanges returns a user's exchanges, newest first. An empty
// documentID lists exchanges across all documents.
func (s *chatStore) ListExchanges(ctx context.Context, userID, documentID string, limit int) ([]domain.ChatExchange, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, document_id, query, answer, mode, created_at
		FROM chat_exchanges
		WHERE user_id = ? AND (? = '' OR document_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, documentID, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatExchange //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ex domain.ChatExchange
		var docID sql.NullString
		var mode, createdAt string
		if err := rows.Scan(&ex.ID, &ex.UserID, &docID, &ex.Query, &ex.Answer, &mode, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		ex.DocumentID = docID.String
		ex.Mode = domain.AnswerMode(mode)
		ex.CreatedAt = parseTime(createdAt)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchanges: %w", err)
	}
	return out, nil
}

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

const taskColumns = `id, owner_id, description, status, source, document_id, created_at, updated_at`

// SaveTask creates or updates a task.
func (s *taskStore) SaveTask(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, task.ID, task.OwnerID, task.Description, string(task.Status), string(task.Source),
		nullString(task.DocumentID), formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving task: %w", err)
	}
	return nil
}

// GetTask retrieves a task owned by ownerID.
func (s *taskStore) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	return scanTask(row)
}

// ListTasks returns an owner's tasks matching the filter, oldest first.
func (s *taskStore) ListTasks(ctx context.Context, ownerID string, filter domain.TaskFilter) ([]domain.Task, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+taskColumns+`
		FROM tasks
		WHERE owner_id = ?
		  AND (? = '' OR status = ?)
		  AND (? = '' OR document_id = ?)
		ORDER BY created_at, id`,
		ownerID, string(filter.Status), string(filter.Status), filter.DocumentID, filter.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return out, nil
}

// DeleteTask removes a task owned by ownerID.
func (s *taskStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return requireAffected(res)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status, source, createdAt, updatedAt string
	var docID sql.NullString

	if err := row.Scan(&task.ID, &task.OwnerID, &task.Description, &status, &source,
		&docID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.Source = domain.TaskSource(source)
	task.DocumentID = docID.String
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	return &task, nil
}
