package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is the number of results kept per job.
const historyRetention = 100

var schedLog = logger.For("scheduler")

// Scheduler runs the background ingestion and embedding jobs.
//
// ingest-pending ingests every not_started document. embedding-sweep runs
// one embedding batch per processing document while holding a per-document
// lease, so several Verity processes sharing a store don't contend.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	docStore  driven.DocumentStore
	ingestion driving.IngestionService
	worker    driving.EmbeddingWorker
	locker    driven.Locker
	leaseTTL  time.Duration

	mu      sync.Mutex
	running bool
	active  map[string]bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
// The worker and locker parameters are optional (can be nil).
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	docStore driven.DocumentStore,
	ingestion driving.IngestionService,
	worker driving.EmbeddingWorker,
	locker driven.Locker,
	leaseTTL time.Duration,
) *Scheduler {
	if leaseTTL <= 0 {
		leaseTTL = domain.DefaultPipelineSettings().ClaimTTL
	}
	return &Scheduler{
		config:    config,
		store:     store,
		docStore:  docStore,
		ingestion: ingestion,
		worker:    worker,
		locker:    locker,
		leaseTTL:  leaseTTL,
		active:    make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	// Initialise jobs in store
	if err := s.initialiseJobs(ctx); err != nil {
		schedLog.Error("failed to initialise jobs: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running jobs to complete
	s.wg.Wait()

	return nil
}

// RunNow executes a job immediately and waits for it to finish.
func (s *Scheduler) RunNow(ctx context.Context, jobID string) (*domain.JobRun, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		name, ok := builtinJobNames[jobID]
		if !ok {
			return nil, fmt.Errorf("job %q: %w", jobID, domain.ErrNotFound)
		}
		job = &domain.Job{
			ID:       jobID,
			Name:     name,
			Interval: s.config.Job(jobID).Interval,
			Enabled:  true,
		}
	}

	if !s.claim(jobID) {
		return nil, fmt.Errorf("job %q already running: %w", jobID, domain.ErrLockHeld)
	}
	defer s.unclaim(jobID)

	return s.execute(ctx, job), nil
}

// Jobs returns the registered jobs and their last run state.
func (s *Scheduler) Jobs() []domain.Job {
	jobs, err := s.store.ListJobs(context.Background())
	if err != nil {
		schedLog.Error("failed to list jobs: %v", err)
		return nil
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

var builtinJobNames = map[string]string{
	domain.JobIngestPending:  "Ingest Pending Documents",
	domain.JobEmbeddingSweep: "Embedding Sweep",
}

// initialiseJobs ensures all configured jobs exist in the store.
func (s *Scheduler) initialiseJobs(ctx context.Context) error {
	for _, id := range []string{domain.JobIngestPending, domain.JobEmbeddingSweep} {
		jobCfg := s.config.Job(id)
		if err := s.ensureJob(ctx, id, builtinJobNames[id], jobCfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureJob creates or updates a job in the store.
func (s *Scheduler) ensureJob(ctx context.Context, id, name string, cfg domain.JobConfig) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}

	if job == nil {
		// New jobs run on the first tick
		job = &domain.Job{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now(),
		}
	} else {
		// Update interval if changed
		if job.Interval != cfg.Interval {
			job.Interval = cfg.Interval
			// Recalculate next run from now
			job.NextRun = time.Now().Add(cfg.Interval)
		}
		job.Enabled = cfg.Enabled
	}

	return s.store.SaveJob(ctx, job)
}

// tickInterval is the shortest enabled job interval, clamped to [1s, 1m].
func (s *Scheduler) tickInterval() time.Duration {
	tick := time.Minute
	for _, cfg := range s.config.Jobs {
		if cfg.Enabled && cfg.Interval > 0 && cfg.Interval < tick {
			tick = cfg.Interval
		}
	}
	return max(tick, time.Second)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	// Check for due jobs immediately on startup
	s.checkAndRunDueJobs(ctx)

	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueJobs(ctx)
		}
	}
}

// checkAndRunDueJobs finds and executes jobs that are due.
func (s *Scheduler) checkAndRunDueJobs(ctx context.Context) {
	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		schedLog.Error("failed to list jobs: %v", err)
		return
	}

	now := time.Now()
	for i := range jobs {
		job := &jobs[i]
		if !job.Enabled {
			continue
		}
		if job.NextRun.IsZero() || !job.NextRun.After(now) {
			s.runJob(ctx, job)
		}
	}
}

// runJob executes a single job in the background. A job that is still
// running from an earlier tick is not started again.
func (s *Scheduler) runJob(ctx context.Context, job *domain.Job) {
	if !s.claim(job.ID) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unclaim(job.ID)
		s.execute(ctx, job)
	}()
}

// execute runs a job, then records its state and result.
func (s *Scheduler) execute(ctx context.Context, job *domain.Job) *domain.JobRun {
	result := &domain.JobRun{
		JobID:     job.ID,
		StartedAt: time.Now(),
	}

	var err error
	switch job.ID {
	case domain.JobIngestPending:
		result.ItemsProcessed, err = s.runIngestPending(ctx)
	case domain.JobEmbeddingSweep:
		result.ItemsProcessed, err = s.runEmbeddingSweep(ctx)
	default:
		err = fmt.Errorf("unknown job ID: %s", job.ID)
		schedLog.Error("%v", err)
	}

	result.EndedAt = time.Now()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		job.LastError = err.Error()
		schedLog.Error("job %s failed: %v", job.ID, err)
	} else {
		result.Success = true
		job.LastError = ""
		job.LastSuccess = result.EndedAt
	}

	// Update job state
	job.LastRun = result.StartedAt
	job.NextRun = result.EndedAt.Add(job.Interval)

	// Bookkeeping survives cancellation of the run itself.
	bctx := context.WithoutCancel(ctx)
	if saveErr := s.store.SaveJob(bctx, job); saveErr != nil {
		schedLog.Error("failed to save job %s: %v", job.ID, saveErr)
	}

	// Record result for history
	if recordErr := s.store.RecordRun(bctx, result); recordErr != nil {
		schedLog.Error("failed to record result for %s: %v", job.ID, recordErr)
	}

	if pruneErr := s.store.PruneRuns(bctx, historyRetention); pruneErr != nil {
		schedLog.Error("failed to prune history: %v", pruneErr)
	}

	return result
}

// runIngestPending ingests every not_started document.
func (s *Scheduler) runIngestPending(ctx context.Context) (int, error) {
	if s.ingestion == nil {
		return 0, nil
	}

	docs, err := s.docStore.ListDocumentsByStatus(ctx, domain.DocumentNotStarted)
	if err != nil {
		return 0, fmt.Errorf("list pending documents: %w", err)
	}

	var (
		processed int
		errs      []error
	)
	for _, doc := range docs {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		release, err := s.lease(ctx, "ingest:"+doc.ID)
		if errors.Is(err, domain.ErrLockHeld) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		_, err = s.ingestion.Ingest(ctx, doc.OwnerID, doc.ID)
		release()
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", doc.ID, err))
			continue
		}
		processed++
	}

	return processed, errors.Join(errs...)
}

// runEmbeddingSweep runs one batch for every processing document.
func (s *Scheduler) runEmbeddingSweep(ctx context.Context) (int, error) {
	if s.worker == nil {
		return 0, nil
	}

	docs, err := s.docStore.ListDocumentsByStatus(ctx, domain.DocumentProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}

	var (
		processed int
		errs      []error
	)
	for _, doc := range docs {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		release, err := s.lease(ctx, "embed:"+doc.ID)
		if errors.Is(err, domain.ErrLockHeld) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		batch, err := s.worker.RunBatch(ctx, driving.BatchScope{OwnerID: doc.OwnerID, DocumentID: doc.ID}, DefaultClaimLimit)
		release()
		if batch != nil {
			processed += batch.Processed
		}
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return processed, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("embed %s: %w", doc.ID, err))
		}
	}

	return processed, errors.Join(errs...)
}

// lease takes the named lock when a locker is configured.
func (s *Scheduler) lease(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, key, s.leaseTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			err = fmt.Errorf("acquire lease %s: %w", key, err)
		}
		return nil, err
	}
	return release, nil
}

func (s *Scheduler) claim(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[jobID] {
		return false
	}
	s.active[jobID] = true
	return true
}

func (s *Scheduler) unclaim(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
}
