package cli

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

type mockDocumentService struct {
	deleted string
	err     error
}

var testDocuments = []domain.Document{
	{
		ID:        "doc-1",
		OwnerID:   "alice",
		Name:      "retention-policy.md",
		MediaType: "text/markdown",
		Size:      2048,
		Status:    domain.DocumentReady,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	},
}

func (m *mockDocumentService) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Document
	for _, d := range testDocuments {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentService) Get(_ context.Context, ownerID, documentID string) (*domain.Document, error) {
	for i := range testDocuments {
		if testDocuments[i].ID == documentID && testDocuments[i].OwnerID == ownerID {
			doc := testDocuments[i]
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) Chunks(_ context.Context, _, _ string) ([]domain.Chunk, error) {
	return []domain.Chunk{
		{ID: "c1", Position: 0, Content: "Audit logs are retained for seven years.", Status: domain.ChunkEmbedded},
		{ID: "c2", Position: 1, Content: "Short.", Status: domain.ChunkSkipped},
	}, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _, documentID string) error {
	m.deleted = documentID
	return m.err
}

type mockIngestionService struct {
	request driving.UploadRequest
	body    string
	err     error
}

func (m *mockIngestionService) Upload(_ context.Context, req driving.UploadRequest) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	m.request = req
	m.body = string(data)
	return &domain.Document{ID: "doc-new", OwnerID: req.OwnerID, Name: req.Name, Status: domain.DocumentNotStarted}, nil
}

func (m *mockIngestionService) Ingest(_ context.Context, ownerID, documentID string) (*driving.IngestResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &driving.IngestResult{
		Document:   &domain.Document{ID: documentID, OwnerID: ownerID, Status: domain.DocumentProcessing},
		ChunkCount: 4,
	}, nil
}

type mockPipeline struct {
	rounds int
	status domain.DocumentStatus
}

func (m *mockPipeline) Process(_ context.Context, _, documentID string, maxRounds int) (*driving.PipelineResult, error) {
	m.rounds = maxRounds
	status := m.status
	if status == "" {
		status = domain.DocumentReady
	}
	counts := domain.ChunkCounts{Total: 4, Embedded: 3, Skipped: 1}
	if status == domain.DocumentProcessing {
		counts = domain.ChunkCounts{Total: 4, Embedded: 2, Pending: 2}
	}
	return &driving.PipelineResult{
		Ingest:   &driving.IngestResult{ChunkCount: 4},
		Batches:  1,
		Embedded: counts.Embedded,
		Skipped:  counts.Skipped,
		Progress: domain.NewDocumentProgress(documentID, status, counts),
	}, nil
}

type mockWorker struct {
	scope driving.BatchScope
	limit int
	total int
}

func (m *mockWorker) RunBatch(_ context.Context, scope driving.BatchScope, limit int) (*driving.BatchResult, error) {
	m.scope = scope
	m.limit = limit
	return &driving.BatchResult{Total: m.total, Processed: m.total, Embedded: m.total}, nil
}

type mockStatusService struct{}

func (mockStatusService) Reconcile(_ context.Context, documentID string) (domain.DocumentProgress, error) {
	return domain.NewDocumentProgress(documentID, domain.DocumentReady, domain.ChunkCounts{Total: 2, Embedded: 2}), nil
}

func (mockStatusService) GetDocumentStatus(_ context.Context, _, documentID string) (domain.DocumentProgress, error) {
	if documentID != "doc-1" {
		return domain.DocumentProgress{}, domain.ErrNotFound
	}
	return domain.NewDocumentProgress(documentID, domain.DocumentProcessing,
		domain.ChunkCounts{Total: 4, Embedded: 1, Skipped: 1, Pending: 2}), nil
}

type mockAnswerService struct {
	answer    *domain.Answer
	err       error
	request   domain.AskRequest
	exchanges []domain.ChatExchange
	historyOf string
}

func (m *mockAnswerService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.request = req
	return m.answer, m.err
}

func (m *mockAnswerService) History(_ context.Context, userID, documentID string, _ int) ([]domain.ChatExchange, error) {
	m.historyOf = userID + "/" + documentID
	return m.exchanges, m.err
}

type mockTaskService struct {
	tasks       []domain.Task
	suggestions []string
	transition  domain.TaskStatus
	filter      domain.TaskFilter
	deleted     string
	err         error
}

func (m *mockTaskService) Create(_ context.Context, ownerID, description, documentID string) (*domain.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Task{
		ID:          "task-new",
		OwnerID:     ownerID,
		Description: description,
		DocumentID:  documentID,
		Status:      domain.TaskOpen,
		Source:      domain.TaskSourceManual,
	}, nil
}

func (m *mockTaskService) CreateFromSuggestions(
	_ context.Context,
	ownerID, documentID string,
	suggestions []string,
) ([]domain.Task, error) {
	m.suggestions = suggestions
	out := make([]domain.Task, len(suggestions))
	for i, s := range suggestions {
		out[i] = domain.Task{
			ID:          "derived-" + s,
			OwnerID:     ownerID,
			Description: s,
			DocumentID:  documentID,
			Status:      domain.TaskOpen,
			Source:      domain.TaskSourceDerived,
		}
	}
	return out, m.err
}

func (m *mockTaskService) Get(_ context.Context, _, taskID string) (*domain.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == taskID {
			return &m.tasks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTaskService) List(_ context.Context, _ string, filter domain.TaskFilter) ([]domain.Task, error) {
	m.filter = filter
	return m.tasks, m.err
}

func (m *mockTaskService) Transition(
	_ context.Context,
	_, taskID string,
	status domain.TaskStatus,
) (*domain.Task, error) {
	m.transition = status
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Task{ID: taskID, Status: status}, nil
}

func (m *mockTaskService) Delete(_ context.Context, _, taskID string) error {
	m.deleted = taskID
	return m.err
}

type mockScheduler struct {
	ran string
}

func (m *mockScheduler) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (*domain.JobRun, error) {
	if taskID != "embedding" {
		return nil, domain.ErrNotFound
	}
	m.ran = taskID
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.JobRun{
		JobID:          taskID,
		Success:        true,
		ItemsProcessed: 7,
		StartedAt:      start,
		EndedAt:        start.Add(1500 * time.Millisecond),
	}, nil
}

func (m *mockScheduler) Jobs() []domain.Job {
	return []domain.Job{
		{ID: "embedding", Name: "Embed pending chunks", Interval: time.Minute, Enabled: true, LastError: "provider unavailable"},
	}
}

type mockSettingsService struct {
	settings    domain.AppSettings
	provider    domain.AIProvider
	model       string
	apiKey      string
	validateErr error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = provider, model, apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = provider, model, apiKey
	return nil
}

func (m *mockSettingsService) Scheduler() domain.SchedulerConfig { return domain.SchedulerConfig{} }
func (m *mockSettingsService) Validate() error                   { return m.validateErr }
func (m *mockSettingsService) ValidateEmbeddingConfig() error    { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error          { return nil }

// testServices holds the mocks wired into the package services.
type testServices struct {
	documents *mockDocumentService
	ingestion *mockIngestionService
	pipeline  *mockPipeline
	worker    *mockWorker
	answer    *mockAnswerService
	tasks     *mockTaskService
	scheduler *mockScheduler
	settings  *mockSettingsService
}

// setupTestServices installs mocks and returns them with a cleanup func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		documents: &mockDocumentService{},
		ingestion: &mockIngestionService{},
		pipeline:  &mockPipeline{},
		worker:    &mockWorker{},
		answer:    &mockAnswerService{},
		tasks:     &mockTaskService{},
		scheduler: &mockScheduler{},
		settings:  &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	previous := services
	services = &Services{
		UserID:     "alice",
		ServerAddr: "127.0.0.1:0",
		Settings:   ts.settings,
		Ingestion:  ts.ingestion,
		Pipeline:   ts.pipeline,
		Worker:     ts.worker,
		Status:     mockStatusService{},
		Answer:     ts.answer,
		Tasks:      ts.tasks,
		Documents:  ts.documents,
		Scheduler:  ts.scheduler,
	}
	return ts, func() { services = previous }
}

// resetFlags restores every flag variable to its default between runs.
func resetFlags() {
	jsonOutput, userFlag, verbose, envFile = false, "", false, ""
	uploadProcess, uploadMediaType, processRounds, embedLimit = false, "", 0, 0
	askDocument, askSaveTasks, historyDoc, historyLimit = "", false, "", 20
	taskDocument, taskStatusFilter = "", ""
	settingsModel, settingsAPIKey = "", ""
	serveAddr, serveNoScheduler, serveWatchDir, watchNoProcess = "", false, "", false
	logger.SetTimestamps(false)
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(args ...string) (string, error) {
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
