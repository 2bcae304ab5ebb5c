package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

// Ensure TaskService implements the interface.
var _ driving.TaskService = (*TaskService)(nil)

// TaskService manages compliance tasks.
type TaskService struct {
	tasks    driven.TaskStore
	docStore driven.DocumentStore
	now      func() time.Time
}

// NewTaskService creates a new task service.
func NewTaskService(tasks driven.TaskStore, docStore driven.DocumentStore) *TaskService {
	return &TaskService{tasks: tasks, docStore: docStore, now: time.Now}
}

// Create adds a manual task.
func (s *TaskService) Create(ctx context.Context, ownerID, description, documentID string) (*domain.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("task description is empty: %w", domain.ErrInvalidInput)
	}
	if err := s.checkDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	task := s.newTask(ownerID, description, documentID, domain.TaskSourceManual)
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// CreateFromSuggestions adds a derived task per distinct suggestion. A
// suggestion matching an unfinished task of the owner is skipped.
func (s *TaskService) CreateFromSuggestions(
	ctx context.Context, ownerID, documentID string, suggestions []string,
) ([]domain.Task, error) {
	if err := s.checkDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	existing, err := s.tasks.ListTasks(ctx, ownerID, domain.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		if t.Status != domain.TaskDone {
			seen[normaliseDescription(t.Description)] = struct{}{}
		}
	}

	created := make([]domain.Task, 0, len(suggestions))
	for _, suggestion := range suggestions {
		description := strings.TrimSpace(suggestion)
		key := normaliseDescription(description)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		task := s.newTask(ownerID, description, documentID, domain.TaskSourceDerived)
		if err := s.tasks.SaveTask(ctx, task); err != nil {
			return created, fmt.Errorf("save task: %w", err)
		}
		created = append(created, *task)
	}
	return created, nil
}

// Get retrieves a task.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	return s.tasks.GetTask(ctx, ownerID, taskID)
}

// List returns tasks matching the filter.
func (s *TaskService) List(ctx context.Context, ownerID string, filter domain.TaskFilter) ([]domain.Task, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("unknown task status %q: %w", filter.Status, domain.ErrInvalidInput)
	}
	return s.tasks.ListTasks(ctx, ownerID, filter)
}

// Transition moves a task to a new status. Re-applying the current status
// is a no-op.
func (s *TaskService) Transition(
	ctx context.Context, ownerID, taskID string, status domain.TaskStatus,
) (*domain.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown task status %q: %w", status, domain.ErrInvalidInput)
	}

	task, err := s.tasks.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}
	if !task.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, task.Status, status)
	}

	task.Status = status
	task.UpdatedAt = s.now()
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	return s.tasks.DeleteTask(ctx, ownerID, taskID)
}

func (s *TaskService) newTask(ownerID, description, documentID string, source domain.TaskSource) *domain.Task {
	now := s.now()
	return &domain.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Description: description,
		Status:      domain.TaskOpen,
		Source:      source,
		DocumentID:  documentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// checkDocument verifies an optional document link belongs to the owner.
func (s *TaskService) checkDocument(ctx context.Context, ownerID, documentID string) error {
	if documentID == "" || s.docStore == nil {
		return nil
	}
	if _, err := s.docStore.GetDocument(ctx, ownerID, documentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("linked document %s: %w", documentID, err)
		}
		return fmt.Errorf("get document: %w", err)
	}
	return nil
}

func normaliseDescription(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
