package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure EmbeddingWorker implements the interface.
var _ driving.EmbeddingWorker = (*EmbeddingWorker)(nil)

// DefaultClaimLimit is used when RunBatch is called without a limit.
const DefaultClaimLimit = 50

// Chunk outcomes reported to metrics.
const (
	outcomeEmbedded = "embedded"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeLost     = "lost"
)

// EmbeddingWorker embeds pending chunks in paced batches.
//
// Work is partitioned by claims: every chunk handed to this worker was
// atomically claimed with a lease, so concurrent workers (goroutines or
// processes) never embed the same chunk at once. The lease is renewed
// before each chunk, and every write is guarded by the worker token so a
// worker whose lease expired cannot overwrite the chunk's new owner.
type EmbeddingWorker struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	embedder   driven.EmbeddingService
	status     driving.StatusService
	metrics    driven.PipelineMetrics
	settings   domain.PipelineSettings
	now        func() time.Time
}

// NewEmbeddingWorker creates a new embedding worker.
// The embedder and metrics parameters are optional (can be nil).
func NewEmbeddingWorker(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	embedder driven.EmbeddingService,
	status driving.StatusService,
	settings domain.PipelineSettings,
	metrics driven.PipelineMetrics,
) *EmbeddingWorker {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &EmbeddingWorker{
		docStore:   docStore,
		chunkStore: chunkStore,
		embedder:   embedder,
		status:     status,
		metrics:    metrics,
		settings:   withPipelineDefaults(settings),
		now:        time.Now,
	}
}

// RunBatch claims up to limit pending or failed chunks in scope and embeds
// them. On cancellation the result counts what completed and the error is
// the context error.
func (w *EmbeddingWorker) RunBatch(ctx context.Context, scope driving.BatchScope, limit int) (*driving.BatchResult, error) {
	if w.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if scope.DocumentID != "" {
		if _, err := w.docStore.GetDocument(ctx, scope.OwnerID, scope.DocumentID); err != nil {
			return nil, fmt.Errorf("get document: %w", err)
		}
	}
	if limit <= 0 {
		limit = DefaultClaimLimit
	}

	logger.Section("Embedding Batch")

	worker := uuid.New().String()
	now := w.now()
	claimed, err := w.chunkStore.ClaimPendingChunks(ctx, domain.ChunkClaim{
		OwnerID:    scope.OwnerID,
		DocumentID: scope.DocumentID,
		Limit:      limit,
		Worker:     worker,
		LeaseUntil: now.Add(w.settings.ClaimTTL).UnixNano(),
		Now:        now.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("claim chunks: %w", err)
	}

	tally := &batchTally{result: &driving.BatchResult{Total: len(claimed)}, docs: make(map[string]struct{})}
	logger.Debug("Claimed %d chunks (limit %d)", len(claimed), limit)
	if len(claimed) == 0 {
		tally.result.Documents = []string{}
		return tally.result, nil
	}

	batches := splitBatches(claimed, w.settings.BatchSize)
	if w.settings.Concurrency > 1 && len(batches) > 1 {
				err = w.runParallel(ctx, worker, batches, tally)
	} else {
		err = w.runSequential(ctx, worker, batches, tally)
	}

	return tally.finish(), err
}

func (w *EmbeddingWorker) runSequential(
	ctx context.Context, worker string, batches [][]domain.Chunk, tally *batchTally,
) error {
	limiter := w.newLimiter()
	for i, batch := range batches {
		if err := limiter.Wait(ctx); err != nil {
			w.release(ctx, worker, flatten(batches[i:]))
			return ctxErr(ctx, err)
		}
		if err := w.processBatch(ctx, worker, batch, tally); err != nil {
			w.release(ctx, worker, flatten(batches[i+1:]))
			return err
		}
	}
	return nil
}

func (w *EmbeddingWorker) runParallel(
	ctx context.Context, worker string, batches [][]domain.Chunk, tally *batchTally,
) error {
	pool, err := ants.NewPool(w.settings.Concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	recordErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	limiter := w.newLimiter()
	for i, batch := range batches {
		if err := limiter.Wait(ctx); err != nil {
			w.release(ctx, worker, flatten(batches[i:]))
			recordErr(ctxErr(ctx, err))
			break
		}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := w.processBatch(ctx, worker, batch, tally); err != nil {
				recordErr(err)
			}
		}); err != nil {
			wg.Done()
			w.release(ctx, worker, flatten(batches[i:]))
			recordErr(fmt.Errorf("submit batch: %w", err))
			break
		}
	}
	wg.Wait()

	return firstErr
}

// processBatch embeds a batch sequentially, then reconciles the documents it touched.
func (w *EmbeddingWorker) processBatch(
	ctx context.Context, worker string, batch []domain.Chunk, tally *batchTally,
) error {
	start := time.Now()
	touched := make(map[string]struct{})

	var runErr error
	for i := range batch {
		chunk := &batch[i]
		if err := ctx.Err(); err != nil {
			w.release(ctx, worker, batch[i:])
			runErr = err
			break
		}
		w.renew(ctx, worker)

		outcome, err := w.processChunk(ctx, worker, chunk)
		if err != nil {
			if ctx.Err() != nil {
				w.release(ctx, worker, batch[i:])
				runErr = ctx.Err()
			} else {
				w.release(ctx, worker, batch[i+1:])
				runErr = err
			}
			break
		}
		touched[chunk.DocumentID] = struct{}{}
		tally.add(chunk.DocumentID, outcome)
		w.metrics.ChunkProcessed(outcome)
	}

	w.metrics.BatchCompleted(len(batch), time.Since(start))

	// Reconcile even after cancellation so status matches the rows already written.
	rctx := context.WithoutCancel(ctx)
	for docID := range touched {
		if _, err := w.status.Reconcile(rctx, docID); err != nil {
			logger.Warn("Reconcile %s failed: %v", docID, err)
		}
	}

	return runErr
}

// processChunk resolves one chunk. An error means the chunk could not be
// recorded at all; provider failures are recorded as the failed outcome and
// a refused write after the lease expired as the lost outcome.
func (w *EmbeddingWorker) processChunk(ctx context.Context, worker string, chunk *domain.Chunk) (string, error) {
	words := domain.CountWords(chunk.Content)
	if words < w.settings.MinWords {
		logger.Debug("Skipping chunk %s at position %d: %d words", chunk.ID, chunk.Position, words)
		err := w.chunkStore.MarkChunk(ctx, chunk.ID, worker, domain.ChunkSkipped, map[string]any{
			domain.MetaWordCount: words,
		})
		return recorded(chunk.ID, outcomeSkipped, err, "mark chunk skipped")
	}

	var vector []float32
	attempts, err := retryWithBackoff(ctx, w.settings.MaxRetries+1, w.settings.BaseDelay, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, w.settings.CallTimeout)
		defer cancel()

		start := time.Now()
		v, err := w.embedder.Embed(callCtx, chunk.Content)
		if err == nil && len(v) == 0 {
			err = fmt.Errorf("empty embedding: %w", domain.ErrProviderUnavailable)
		}
		w.metrics.EmbeddingAttempt(time.Since(start), err)
		vector = v
		return err
	})
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if err != nil {
		logger.Warn("Chunk %s failed after %d attempts: %v", chunk.ID, attempts, err)
		markErr := w.chunkStore.MarkChunk(ctx, chunk.ID, worker, domain.ChunkFailed, map[string]any{
			domain.MetaFailureReason: err.Error(),
			domain.MetaAttempts:      attempts,
		})
		return recorded(chunk.ID, outcomeFailed, markErr, "mark chunk failed")
	}

	err = w.chunkStore.SaveEmbedding(ctx, chunk.ID, worker, vector)
	return recorded(chunk.ID, outcomeEmbedded, err, "save embedding")
}

// recorded maps the result of a guarded chunk write to an outcome.
func recorded(chunkID, outcome string, err error, op string) (string, error) {
	switch {
	case err == nil:
		return outcome, nil
	case errors.Is(err, domain.ErrClaimLost):
		logger.Warn("Chunk %s was taken over after its claim expired", chunkID)
		return outcomeLost, nil
	default:
		return "", fmt.Errorf("%s: %w", op, err)
	}
}

// renew extends the lease on every chunk this run still holds.
func (w *EmbeddingWorker) renew(ctx context.Context, worker string) {
	lease := w.now().Add(w.settings.ClaimTTL).UnixNano()
	if err := w.chunkStore.RenewClaims(ctx, worker, lease); err != nil {
		logger.Warn("Renew claims failed: %v", err)
	}
}

// release hands unprocessed chunks back by clearing their claim. Chunks
// already taken over by another worker are left alone.
func (w *EmbeddingWorker) release(ctx context.Context, worker string, chunks []domain.Chunk) {
	rctx := context.WithoutCancel(ctx)
	for i := range chunks {
		err := w.chunkStore.MarkChunk(rctx, chunks[i].ID, worker, chunks[i].Status, nil)
		if err != nil && !errors.Is(err, domain.ErrClaimLost) {
			logger.Warn("Release chunk %s failed: %v", chunks[i].ID, err)
		}
	}
}

func (w *EmbeddingWorker) newLimiter() *rate.Limiter {
	if w.settings.BatchDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(w.settings.BatchDelay), 1)
}

// batchTally aggregates outcomes across concurrently processed batches.
type batchTally struct {
	mu     sync.Mutex
	result *driving.BatchResult
	docs   map[string]struct{}
}

func (t *batchTally) add(docID, outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.docs[docID] = struct{}{}
	switch outcome {
	case outcomeEmbedded:
		t.result.Embedded++
	case outcomeSkipped:
		t.result.Skipped++
	case outcomeFailed:
		t.result.Failed++
	case outcomeLost:
		t.result.Lost++
	}
}

func (t *batchTally) finish() *driving.BatchResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.result.Processed = t.result.Embedded + t.result.Skipped
	t.result.Documents = make([]string, 0, len(t.docs))
	for id := range t.docs {
		t.result.Documents = append(t.result.Documents, id)
	}
	sort.Strings(t.result.Documents)
	return t.result
}

func splitBatches(chunks []domain.Chunk, size int) [][]domain.Chunk {
	if size <= 0 {
		size = len(chunks)
	}
	batches := make([][]domain.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}
	return batches
}

func flatten(batches [][]domain.Chunk) []domain.Chunk {
	var out []domain.Chunk
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// ctxErr prefers the context's own error over the limiter's wrapper.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("wait for batch slot: %w", err)
}

// withPipelineDefaults fills unusable settings with defaults. A zero
// BaseDelay, BatchDelay or MinWords is honoured; an entirely zero value
// means "use the defaults".
func withPipelineDefaults(s domain.PipelineSettings) domain.PipelineSettings {
	d := domain.DefaultPipelineSettings()
	if s == (domain.PipelineSettings{}) {
		return d
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = d.ChunkSize
	}
	if s.ChunkOverlap < 0 {
		s.ChunkOverlap = d.ChunkOverlap
	}
	if s.MinWords < 0 {
		s.MinWords = d.MinWords
	}
	if s.BatchSize <= 0 {
		s.BatchSize = d.BatchSize
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = d.MaxRetries
	}
	if s.BaseDelay < 0 {
		s.BaseDelay = d.BaseDelay
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = d.CallTimeout
	}
	if s.Concurrency <= 0 {
		s.Concurrency = d.Concurrency
	}
	if s.ClaimTTL <= 0 {
		s.ClaimTTL = d.ClaimTTL
	}
	return s
}

// noopMetrics is used when no PipelineMetrics is configured.
type noopMetrics struct{}

func (noopMetrics) ChunkProcessed(string) {}
func (noopMetrics) EmbeddingAttempt(time.Duration, error) {}
func (noopMetrics) BatchCompleted(int, time.Duration) {}
func (noopMetrics) QuestionAnswered(string, time.Duration) {}
func (noopMetrics) RetrievalServed(string) {}
