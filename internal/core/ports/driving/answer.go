package driving

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// AnswerService answers questions against a user's documents.
type AnswerService interface {
	// Ask answers a question. Declines and failures are *domain.AskError.
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)

	// History returns past exchanges, newest first.
	History(ctx context.Context, userID, documentID string, limit int) ([]domain.ChatExchange, error)
}

// TaskService manages tasks.
type TaskService interface {
	// Create adds a manual task.
	Create(ctx context.Context, ownerID, description, documentID string) (*domain.Task, error)

	// CreateFromSuggestions adds a derived task per distinct suggestion,
	// skipping ones that match an existing open task.
	CreateFromSuggestions(ctx context.Context, ownerID, documentID string, suggestions []string) ([]domain.Task, error)

	// Get retrieves a task.
	Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error)

	// List returns tasks matching the filter.
	List(ctx context.Context, ownerID string, filter domain.TaskFilter) ([]domain.Task, error)

	// Transition moves a task to a new status.
	Transition(ctx context.Context, ownerID, taskID string, status domain.TaskStatus) (*domain.Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, ownerID, taskID string) error
}
