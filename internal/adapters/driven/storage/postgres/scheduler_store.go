package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

type schedulerStore struct {
	db *sql.DB
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const scheduledColumns = `id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled`

// GetJob returns nil and no error if the job does not exist.
func (s *schedulerStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduledColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *schedulerStore) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduledColumns+` FROM jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *schedulerStore) SaveJob(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (`+scheduledColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  interval_seconds = EXCLUDED.interval_seconds,
  last_run = EXCLUDED.last_run,
  next_run = EXCLUDED.next_run,
  last_error = EXCLUDED.last_error,
  last_success = EXCLUDED.last_success,
  enabled = EXCLUDED.enabled`,
		job.ID, job.Name, int64(job.Interval.Seconds()),
		nullTime(job.LastRun), nullTime(job.NextRun), nullString(job.LastError),
		nullTime(job.LastSuccess), job.Enabled)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (s *schedulerStore) DeleteJob(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *schedulerStore) RecordRun(ctx context.Context, result *domain.JobRun) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO job_runs (job_id, started_at, ended_at, success, error, items_processed)
VALUES ($1,$2,$3,$4,$5,$6)`,
		result.JobID, result.StartedAt.UTC(), result.EndedAt.UTC(), result.Success,
		nullString(result.Error), result.ItemsProcessed)
	if err != nil {
		return fmt.Errorf("record job result: %w", err)
	}
	return nil
}

func (s *schedulerStore) JobHistory(ctx context.Context, jobID string, limit int) ([]domain.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, started_at, ended_at, success, error, items_processed
FROM job_runs WHERE job_id = $1
ORDER BY started_at DESC
LIMIT $2`, jobID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()
	var results []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		var errMsg sql.NullString
		if err := rows.Scan(&r.JobID, &r.StartedAt, &r.EndedAt, &r.Success, &errMsg, &r.ItemsProcessed); err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		r.Error = errMsg.String
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *schedulerStore) PruneRuns(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM job_runs
WHERE id IN (
  SELECT id FROM (
    SELECT id, ROW_NUMBER() OVER (PARTITION BY job_id ORDER BY started_at DESC) AS rn
    FROM job_runs
  ) ranked WHERE rn > $1
)`, keep)
	if err != nil {
		return fmt.Errorf("prune job history: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var intervalSeconds int64
	var lastRun, nextRun, lastSuccess sql.NullTime
	var lastError sql.NullString
	if err := row.Scan(&job.ID, &job.Name, &intervalSeconds,
		&lastRun, &nextRun, &lastError, &lastSuccess, &job.Enabled); err != nil {
		return nil, err
	}
	job.Interval = time.Duration(intervalSeconds) * time.Second
	job.LastRun = lastRun.Time
	job.NextRun = nextRun.Time
	job.LastError = lastError.String
	job.LastSuccess = lastSuccess.Time
	return &job, nil
}
