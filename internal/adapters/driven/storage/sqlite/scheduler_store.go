package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

// GetJob retrieves a job by ID.
// Returns nil and no error if the job does not exist.
func (s *schedulerStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled
		FROM jobs WHERE id = ?
	`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns all jobs.
func (s *schedulerStore) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled
		FROM jobs
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// SaveJob persists a job's state.
// Creates or updates the job based on ID.
func (s *schedulerStore) SaveJob(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, job.ID, job.Name, int64(job.Interval.Seconds()),
		formatNullableTime(job.LastRun), formatNullableTime(job.NextRun),
		nullString(job.LastError), formatNullableTime(job.LastSuccess),
		boolToInt(job.Enabled))

	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// DeleteJob removes a job from storage.
func (s *schedulerStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", jobID)
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// RecordRun logs a job execution result.
func (s *schedulerStore) RecordRun(ctx context.Context, result *domain.JobRun) error {
	if result == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO job_runs (job_id, started_at, ended_at, success, error, items_processed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.JobID,
		formatTime(result.StartedAt),
		formatTime(result.EndedAt),
		boolToInt(result.Success),
		nullString(result.Error),
		result.ItemsProcessed)

	if err != nil {
		return fmt.Errorf("recording job result: %w", err)
	}
	return nil
}

// JobHistory returns recent results for a job.
// Results are ordered by start time descending (most recent first).
func (s *schedulerStore) JobHistory(ctx context.Context, jobID string, limit int) ([]domain.JobRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT job_id, started_at, ended_at, success, error, items_processed
		FROM job_runs
		WHERE job_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job history: %w", err)
	}
	defer rows.Close()

	var results []domain.JobRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		result, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job history: %w", err)
	}

	return results, nil
}

// PruneRuns removes old job results beyond the retention limit.
// Keeps the most recent 'keep' results per job.
func (s *schedulerStore) PruneRuns(ctx context.Context, keep int) error {
	// Delete all results except the most recent 'keep' per job
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM job_runs
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY job_id ORDER BY started_at DESC) as rn
				FROM job_runs
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning job history: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var intervalSeconds int64
	var lastRun, nextRun, lastError, lastSuccess sql.NullString
	var enabled int

	if err := row.Scan(&job.ID, &job.Name, &intervalSeconds,
		&lastRun, &nextRun, &lastError, &lastSuccess, &enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Interval = time.Duration(intervalSeconds) * time.Second
	job.LastRun = parseNullableTime(lastRun)
	job.NextRun = parseNullableTime(nextRun)
	job.LastError = lastError.String
	job.LastSuccess = parseNullableTime(lastSuccess)
	job.Enabled = enabled == 1

	return &job, nil
}

func scanJobRun(row rowScanner) (*domain.JobRun, error) {
	var result domain.JobRun
	var startedAt, endedAt string
	var success int
	var errMsg sql.NullString

	if err := row.Scan(&result.JobID, &startedAt, &endedAt,
		&success, &errMsg, &result.ItemsProcessed); err != nil {
		return nil, fmt.Errorf("scanning job result: %w", err)
	}

	result.StartedAt = parseTime(startedAt)
	result.EndedAt = parseTime(endedAt)
	result.Success = success == 1
	result.Error = errMsg.String

	return &result, nil
}
