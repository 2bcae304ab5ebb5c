package driving

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Scheduler runs the background ingestion and embedding jobs.
type Scheduler interface {
	// Start begins running jobs.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running jobs.
	Stop() error

	// RunNow executes a job immediately, outside its schedule.
	RunNow(ctx context.Context, jobID string) (*domain.JobRun, error)

	// Jobs returns the registered jobs and their last run state.
	Jobs() []domain.Job
}
