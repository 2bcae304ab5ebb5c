package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure ChatStore implements the interface.
var _ driven.ChatStore = (*ChatStore)(nil)

// ChatStore is an in-memory exchange log.
type ChatStore struct {
	mu        sync.RWMutex
	exchanges []domain.ChatExchange
}

// NewChatStore creates a new in-memory chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{}
}

// SaveExchange appends an exchange.
func (s *ChatStore) SaveExchange(_ context.Context, exchange *domain.ChatExchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, *exchange)
	return nil
}

// ListExchanges returns a user's exchanges, newest first.
func (s *ChatStore) ListExchanges(_ context.Context, userID, documentID string, limit int) ([]domain.ChatExchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ChatExchange
	for i := len(s.exchanges) - 1; i >= 0; i-- {
		ex := s.exchanges[i]
		if ex.UserID != userID || (documentID != "" && ex.DocumentID != documentID) {
			continue
		}
		out = append(out, ex)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ensure TaskStore implements the interface.
var _ driven.TaskStore = (*TaskStore)(nil)

// TaskStore is an in-memory task store.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]domain.Task)}
}

// SaveTask creates or updates a task.
func (s *TaskStore) SaveTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// GetTask retrieves a task owned by ownerID.
func (s *TaskStore) GetTask(_ context.Context, ownerID, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &task, nil
}

// ListTasks returns an owner's tasks matching the filter, oldest first.
func (s *TaskStore) ListTasks(_ context.Context, ownerID string, filter domain.TaskFilter) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Task
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.DocumentID != "" && task.DocumentID != filter.DocumentID {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteTask removes a task.
func (s *TaskStore) DeleteTask(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
