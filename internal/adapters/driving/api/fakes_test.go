package api

import (
	"context"
	"io"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

type fakeAnswerService struct {
	answer    *domain.Answer
	exchanges []domain.ChatExchange
	err       error
	request   domain.AskRequest
	limit     int
}

func (f *fakeAnswerService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	f.request = req
	return f.answer, f.err
}

func (f *fakeAnswerService) History(_ context.Context, userID, _ string, limit int) ([]domain.ChatExchange, error) {
	f.request.OwnerID = userID
	f.limit = limit
	return f.exchanges, f.err
}

type fakeDocumentService struct {
	documents []domain.Document
	chunks    []domain.Chunk
	err       error
	owner     string
	deleted   string
}

func (f *fakeDocumentService) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	f.owner = ownerID
	return f.documents, f.err
}

func (f *fakeDocumentService) Get(_ context.Context, ownerID, documentID string) (*domain.Document, error) {
	f.owner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.documents {
		if f.documents[i].ID == documentID && f.documents[i].OwnerID == ownerID {
			return &f.documents[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocumentService) Chunks(_ context.Context, _, _ string) ([]domain.Chunk, error) {
	return f.chunks, f.err
}

func (f *fakeDocumentService) Delete(_ context.Context, _, documentID string) error {
	f.deleted = documentID
	return f.err
}

type fakeIngestionService struct {
	request driving.UploadRequest
	body    string
	err     error
}

func (f *fakeIngestionService) Upload(_ context.Context, req driving.UploadRequest) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	f.request = req
	f.body = string(data)
	return &domain.Document{
		ID:        "doc-new",
		OwnerID:   req.OwnerID,
		Name:      req.Name,
		MediaType: "text/plain",
		Size:      int64(len(data)),
		Status:    domain.DocumentNotStarted,
	}, nil
}

func (f *fakeIngestionService) Ingest(_ context.Context, ownerID, documentID string) (*driving.IngestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &driving.IngestResult{
		Document:   &domain.Document{ID: documentID, OwnerID: ownerID, Status: domain.DocumentProcessing},
		ChunkCount: 3,
	}, nil
}

type fakePipeline struct {
	result *driving.PipelineResult
	err    error
	rounds int
}

func (f *fakePipeline) Process(_ context.Context, _, _ string, maxRounds int) (*driving.PipelineResult, error) {
	f.rounds = maxRounds
	return f.result, f.err
}

type fakeWorker struct {
	scope driving.BatchScope
	limit int
}

func (f *fakeWorker) RunBatch(_ context.Context, scope driving.BatchScope, limit int) (*driving.BatchResult, error) {
	f.scope = scope
	f.limit = limit
	return &driving.BatchResult{Total: 2, Processed: 2, Embedded: 2, Documents: []string{"doc-1"}}, nil
}

type fakeStatusService struct {
	progress domain.DocumentProgress
	err      error
}

func (f *fakeStatusService) Reconcile(_ context.Context, _ string) (domain.DocumentProgress, error) {
	return f.progress, f.err
}

func (f *fakeStatusService) GetDocumentStatus(_ context.Context, _, _ string) (domain.DocumentProgress, error) {
	return f.progress, f.err
}

type fakeTaskService struct {
	tasks       []domain.Task
	err         error
	suggestions []string
	filter      domain.TaskFilter
	transition  domain.TaskStatus
}

func (f *fakeTaskService) Create(_ context.Context, ownerID, description, documentID string) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Task{
		ID:          "task-1",
		OwnerID:     ownerID,
		Description: description,
		DocumentID:  documentID,
		Status:      domain.TaskOpen,
		Source:      domain.TaskSourceManual,
	}, nil
}

func (f *fakeTaskService) CreateFromSuggestions(
	_ context.Context,
	ownerID, documentID string,
	suggestions []string,
) ([]domain.Task, error) {
	f.suggestions = suggestions
	created := make([]domain.Task, len(suggestions))
	for i, s := range suggestions {
		created[i] = domain.Task{
			ID:          s,
			OwnerID:     ownerID,
			Description: s,
			DocumentID:  documentID,
			Status:      domain.TaskOpen,
			Source:      domain.TaskSourceDerived,
		}
	}
	return created, f.err
}

func (f *fakeTaskService) Get(_ context.Context, _, taskID string) (*domain.Task, error) {
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			return &f.tasks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTaskService) List(_ context.Context, _ string, filter domain.TaskFilter) ([]domain.Task, error) {
	f.filter = filter
	return f.tasks, f.err
}

func (f *fakeTaskService) Transition(
	_ context.Context,
	_, taskID string,
	status domain.TaskStatus,
) (*domain.Task, error) {
	f.transition = status
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Task{ID: taskID, Status: status}, nil
}

func (f *fakeTaskService) Delete(_ context.Context, _, _ string) error {
	return f.err
}

type fakeScheduler struct {
	tasks []domain.Job
	ran   string
}

func (f *fakeScheduler) Start(_ context.Context) error { return nil }
func (f *fakeScheduler) Stop() error                   { return nil }

func (f *fakeScheduler) RunNow(_ context.Context, taskID string) (*domain.JobRun, error) {
	for _, t := range f.tasks {
		if t.ID == taskID {
			f.ran = taskID
			return &domain.JobRun{JobID: taskID, Success: true, ItemsProcessed: 4}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeScheduler) Jobs() []domain.Job {
	return f.tasks
}
