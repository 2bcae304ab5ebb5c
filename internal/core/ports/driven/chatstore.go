package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// ChatStore is the append-only exchange log.
type ChatStore interface {
	// SaveExchange appends an exchange.
	SaveExchange(ctx context.Context, exchange *domain.ChatExchange) error

	// ListExchanges returns a user's exchanges, newest first.
	// An empty documentID lists all of the user's exchanges.
	ListExchanges(ctx context.Context, userID, documentID string, limit int) ([]domain.ChatExchange, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	// SaveTask creates or updates a task.
	SaveTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task owned by ownerID.
	GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error)

	// ListTasks returns an owner's tasks matching the filter, oldest first.
	ListTasks(ctx context.Context, ownerID string, filter domain.TaskFilter) ([]domain.Task, error)

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, ownerID, id string) error
}
