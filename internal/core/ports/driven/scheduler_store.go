package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// SchedulerStore persists scheduler state for crash recovery.
// It stores job state and execution history.
type SchedulerStore interface {
	// GetJob retrieves a job by ID.
	// Returns nil and no error if the job does not exist.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// ListJobs returns all jobs.
	ListJobs(ctx context.Context) ([]domain.Job, error)

	// SaveJob persists a job's state.
	// Creates or updates the job based on ID.
	SaveJob(ctx context.Context, job *domain.Job) error

	// DeleteJob removes a job from storage.
	DeleteJob(ctx context.Context, jobID string) error

	// RecordRun logs a job execution result.
	RecordRun(ctx context.Context, result *domain.JobRun) error

	// JobHistory returns recent results for a job.
	// Results are ordered by start time descending (most recent first).
	JobHistory(ctx context.Context, jobID string, limit int) ([]domain.JobRun, error)

	// PruneRuns removes old job results beyond the retention limit.
	// Keeps the most recent 'keep' results per job.
	PruneRuns(ctx context.Context, keep int) error
}
