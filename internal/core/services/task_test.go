package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/verity/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verity/internal/core/domain"
)

func newTestTaskService(t *testing.T) (*TaskService, *memstore.DocumentStore) {
	t.Helper()
	docs := memstore.NewDocumentStore()
	seedDocument(t, docs, "alice", "doc-1", domain.DocumentReady)
	return NewTaskService(memstore.NewTaskStore(), docs), docs
}

func TestTaskService_Create(t *testing.T) {
	service, _ := newTestTaskService(t)

	task, err := service.Create(context.Background(), "alice", "  Review the access policy  ", "doc-1")
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Review the access policy", task.Description)
	assert.Equal(t, domain.TaskOpen, task.Status)
	assert.Equal(t, domain.TaskSourceManual, task.Source)
	assert.Equal(t, "doc-1", task.DocumentID)

	got, err := service.Get(context.Background(), "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Description, got.Description)
}

func TestTaskService_Create_EmptyDescription(t *testing.T) {
	service, _ := newTestTaskService(t)

	_, err := service.Create(context.Background(), "alice", " \t ", "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTaskService_Create_OtherOwnersDocument(t *testing.T) {
	service, _ := newTestTaskService(t)

	_, err := service.Create(context.Background(), "mallory", "Steal things", "doc-1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskService_CreateFromSuggestions(t *testing.T) {
	service, _ := newTestTaskService(t)
	ctx := context.Background()

	existing, err := service.Create(ctx, "alice", "Train staff", "")
	require.NoError(t, err)
	done, err := service.Create(ctx, "alice", "Audit logs", "")
	require.NoError(t, err)
	_, err = service.Transition(ctx, "alice", done.ID, domain.TaskDone)
	require.NoError(t, err)

	// "train STAFF" matches an open task and is skipped. "Audit logs" only
	// matches a finished task, so it comes back.
	created, err := service.CreateFromSuggestions(ctx, "alice", "doc-1", []string{
		"train   STAFF",
		"Audit logs",
		"Encrypt laptops",
		"encrypt laptops",
		"   ",
	})
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, "Audit logs", created[0].Description)
	assert.Equal(t, "Encrypt laptops", created[1].Description)
	for _, task := range created {
		assert.Equal(t, domain.TaskSourceDerived, task.Source)
		assert.Equal(t, "doc-1", task.DocumentID)
		assert.Equal(t, domain.TaskOpen, task.Status)
	}

	all, err := service.List(ctx, "alice", domain.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.NotEqual(t, existing.ID, created[0].ID)
}

func TestTaskService_List_Filters(t *testing.T) {
	service, _ := newTestTaskService(t)
	ctx := context.Background()

	a, err := service.Create(ctx, "alice", "One", "doc-1")
	require.NoError(t, err)
	_, err = service.Create(ctx, "alice", "Two", "")
	require.NoError(t, err)
	_, err = service.Transition(ctx, "alice", a.ID, domain.TaskInProgress)
	require.NoError(t, err)

	inProgress, err := service.List(ctx, "alice", domain.TaskFilter{Status: domain.TaskInProgress})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, a.ID, inProgress[0].ID)

	linked, err := service.List(ctx, "alice", domain.TaskFilter{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Len(t, linked, 1)

	_, err = service.List(ctx, "alice", domain.TaskFilter{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTaskService_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.TaskStatus
		to      domain.TaskStatus
		wantErr error
	}{
		{"open to in progress", domain.TaskOpen, domain.TaskInProgress, nil},
		{"open to done", domain.TaskOpen, domain.TaskDone, nil},
		{"in progress to done", domain.TaskInProgress, domain.TaskDone, nil},
		{"done reopened", domain.TaskDone, domain.TaskOpen, nil},
		{"same status is a no-op", domain.TaskOpen, domain.TaskOpen, nil},
		{"done to in progress", domain.TaskDone, domain.TaskInProgress, domain.ErrInvalidTransition},
		{"unknown status", domain.TaskOpen, "archived", domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestTaskService(t)
			ctx := context.Background()

			task, err := service.Create(ctx, "alice", "Do it", "")
			require.NoError(t, err)
			if tt.from != domain.TaskOpen {
				_, err = service.Transition(ctx, "alice", task.ID, tt.from)
				require.NoError(t, err)
			}

			got, err := service.Transition(ctx, "alice", task.ID, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
		})
	}
}

func TestTaskService_Transition_OtherOwner(t *testing.T) {
	service, _ := newTestTaskService(t)
	task, err := service.Create(context.Background(), "alice", "Private", "")
	require.NoError(t, err)

	_, err = service.Transition(context.Background(), "mallory", task.ID, domain.TaskDone)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskService_Delete(t *testing.T) {
	service, _ := newTestTaskService(t)
	ctx := context.Background()
	task, err := service.Create(ctx, "alice", "Temporary", "")
	require.NoError(t, err)

	assert.ErrorIs(t, service.Delete(ctx, "mallory", task.ID), domain.ErrNotFound)
	require.NoError(t, service.Delete(ctx, "alice", task.ID))

	_, err = service.Get(ctx, "alice", task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
