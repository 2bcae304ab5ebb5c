package domain

import "time"

// Job represents a recurring background job.
type Job struct {
	// ID is the unique identifier for the job.
	ID string

	// Name is a human-readable name for the job.
	Name string

	// Interval defines how often the job should run.
	Interval time.Duration

	// LastRun is when the job last ran.
	LastRun time.Time

	// NextRun is when the job should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the job last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the job is active.
	Enabled bool
}

// JobRun represents the outcome of a job run.
type JobRun struct {
	// JobID identifies which job was run.
	JobID string

	// StartedAt is when the job started.
	StartedAt time.Time

	// EndedAt is when the job completed.
	EndedAt time.Time

	// Success indicates whether the job completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed counts documents or chunks handled.
	ItemsProcessed int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// Jobs holds per-job configuration.
	Jobs map[string]JobConfig
}

// JobConfig holds configuration for a single job.
type JobConfig struct {
	// Enabled indicates whether this job should run.
	Enabled bool

	// Interval defines how often the job should run.
	Interval time.Duration
}

// Job returns the configuration for a specific job.
// Returns a zero JobConfig if the job is not configured.
func (c *SchedulerConfig) Job(jobID string) JobConfig {
	if c.Jobs == nil {
		return JobConfig{}
	}
	return c.Jobs[jobID]
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Jobs: map[string]JobConfig{
			JobIngestPending: {
				Enabled:  true,
				Interval: 30 * time.Second,
			},
			JobEmbeddingSweep: {
				Enabled:  true,
				Interval: 15 * time.Second,
			},
		},
	}
}

// IDs for built-in jobs.
const (
	JobIngestPending  = "ingest-pending"
	JobEmbeddingSweep = "embedding-sweep"
)
