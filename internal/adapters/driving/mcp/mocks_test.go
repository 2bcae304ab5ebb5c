package mcp

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

type mockAnswerService struct {
	answer  *domain.Answer
	err     error
	request domain.AskRequest
}

func (m *mockAnswerService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.request = req
	return m.answer, m.err
}

func (m *mockAnswerService) History(_ context.Context, _, _ string, _ int) ([]domain.ChatExchange, error) {
	return nil, m.err
}

type mockStatusService struct {
	progress domain.DocumentProgress
	err      error
	owner    string
}

func (m *mockStatusService) Reconcile(_ context.Context, _ string) (domain.DocumentProgress, error) {
	return m.progress, m.err
}

func (m *mockStatusService) GetDocumentStatus(
	_ context.Context,
	ownerID, _ string,
) (domain.DocumentProgress, error) {
	m.owner = ownerID
	return m.progress, m.err
}

type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	chunks    []domain.Chunk
	err       error
}

func (m *mockDocumentService) List(_ context.Context, _ string) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _, _ string) (*domain.Document, error) {
	if m.document == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _, _ string) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

type mockTaskService struct {
	tasks  []domain.Task
	err    error
	filter domain.TaskFilter
}

func (m *mockTaskService) Create(_ context.Context, _, _, _ string) (*domain.Task, error) {
	return nil, m.err
}

func (m *mockTaskService) CreateFromSuggestions(
	_ context.Context,
	_, _ string,
	_ []string,
) ([]domain.Task, error) {
	return nil, m.err
}

func (m *mockTaskService) Get(_ context.Context, _, _ string) (*domain.Task, error) {
	return nil, m.err
}

func (m *mockTaskService) List(_ context.Context, _ string, filter domain.TaskFilter) ([]domain.Task, error) {
	m.filter = filter
	return m.tasks, m.err
}

func (m *mockTaskService) Transition(_ context.Context, _, _ string, _ domain.TaskStatus) (*domain.Task, error) {
	return nil, m.err
}

func (m *mockTaskService) Delete(_ context.Context, _, _ string) error {
	return m.err
}
