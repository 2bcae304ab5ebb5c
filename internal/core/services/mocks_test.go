package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/verity/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// --- Mock implementations shared by service tests ---

// mockEmbedder implements driven.EmbeddingService for testing.
// By default it returns a keyword vector so similarity is predictable.
type mockEmbedder struct {
	mu     sync.Mutex
	calls  []string
	embed  func(text string) ([]float32, error)
	closed bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.embed != nil {
		return m.embed(text)
	}
	return keywordVector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int   { return 3 }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error {
	m.closed = true
	return nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockEmbedder) embedded(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == text {
			return true
		}
	}
	return false
}

// keywordVector scores the two section headings plus a constant bias.
func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "section 1")),
		float32(strings.Count(lower, "section 2")),
		1,
	}
}

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	mu         sync.Mutex
	response   string
	err        error
	complete   func(ctx context.Context, system, user string) (string, error)
	system     string
	user       string
	opts       driven.CompletionOptions
	callsCount int
}

func (m *mockLLM) Complete(ctx context.Context, system, user string, opts driven.CompletionOptions) (string, error) {
	m.mu.Lock()
	m.system, m.user, m.opts = system, user, opts
	m.callsCount++
	m.mu.Unlock()
	if m.complete != nil {
		return m.complete(ctx, system, user)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callsCount
}

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct {
	prompts map[string]string
	err     error
}

func newMockPrompts() *mockPrompts {
	return &mockPrompts{prompts: map[string]string{
		driven.PromptSystem:         "SYSTEM",
		driven.PromptGroundedAnswer: "EXCERPTS:\n%s\nQUESTION: %s",
		driven.PromptGeneralAnswer:  "GENERAL QUESTION: %s",
	}}
}

func (m *mockPrompts) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	p, ok := m.prompts[name]
	if !ok {
		return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

func (m *mockPrompts) Reload() {}

// recordingMetrics implements driven.PipelineMetrics for testing.
type recordingMetrics struct {
	mu         sync.Mutex
	chunks     map[string]int
	attempts   int
	failures   int
	batches    int
	questions  map[string]int
	retrievals map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		chunks:     make(map[string]int),
		questions:  make(map[string]int),
		retrievals: make(map[string]int),
	}
}

func (m *recordingMetrics) ChunkProcessed(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[outcome]++
}

func (m *recordingMetrics) EmbeddingAttempt(_ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if err != nil {
		m.failures++
	}
}

func (m *recordingMetrics) BatchCompleted(_ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func (m *recordingMetrics) QuestionAnswered(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[outcome]++
}

func (m *recordingMetrics) RetrievalServed(provenance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievals[provenance]++
}

// failingChatStore implements driven.ChatStore and always fails to save.
type failingChatStore struct{}

func (failingChatStore) SaveExchange(_ context.Context, _ *domain.ChatExchange) error {
	return errors.New("chat store offline")
}

func (failingChatStore) ListExchanges(_ context.Context, _, _ string, _ int) ([]domain.ChatExchange, error) {
	return nil, errors.New("chat store offline")
}

// Ensure mocks implement interfaces
var (
	_ driven.EmbeddingService = (*mockEmbedder)(nil)
	_ driven.LLMService       = (*mockLLM)(nil)
	_ driven.PromptStore      = (*mockPrompts)(nil)
	_ driven.PipelineMetrics  = (*recordingMetrics)(nil)
	_ driven.ChatStore        = failingChatStore{}
)

// --- Fixtures ---

// testPipelineSettings returns defaults without delays.
func testPipelineSettings() domain.PipelineSettings {
	s := domain.DefaultPipelineSettings()
	s.BaseDelay = 0
	s.BatchDelay = 0
	s.CallTimeout = 5 * time.Second
	return s
}

// words returns n space-separated copies of word.
func words(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

// seedDocument stores a document with the given chunk contents.
func seedDocument(
	t *testing.T, store *memstore.DocumentStore, owner, id string, status domain.DocumentStatus, contents ...string,
) *domain.Document {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	doc := &domain.Document{
		ID:        id,
		OwnerID:   owner,
		Name:      id + ".txt",
		MediaType: "text/plain",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveDocument(ctx, doc))

	if len(contents) > 0 {
		chunks := make([]domain.Chunk, 0, len(contents))
		for i, c := range contents {
			chunks = append(chunks, domain.Chunk{
				ID:         fmt.Sprintf("%s-chunk-%d", id, i),
				DocumentID: id,
				Content:    c,
				Position:   i,
				Status:     domain.ChunkPending,
				Metadata:   map[string]any{domain.MetaWordCount: domain.CountWords(c)},
				CreatedAt:  now,
			})
		}
		require.NoError(t, store.ReplaceChunks(ctx, id, chunks))
	}
	return doc
}

// chunkStatuses maps chunk IDs to their current status.
func chunkStatuses(t *testing.T, store *memstore.DocumentStore, documentID string) map[string]domain.ChunkStatus {
	t.Helper()
	chunks, err := store.GetChunks(context.Background(), documentID)
	require.NoError(t, err)
	out := make(map[string]domain.ChunkStatus, len(chunks))
	for _, c := range chunks {
		out[c.ID] = c.Status
	}
	return out
}
