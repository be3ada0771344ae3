package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postforge/internal/domain"
)

// allowedFrom lists the states a job may be in for each target transition.
// It mirrors domain.JobStatus.CanTransition so the guard also holds under
// concurrent writers.
var allowedFrom = map[domain.JobStatus][]string{
	domain.JobStatusInProgress: {string(domain.JobStatusQueued), string(domain.JobStatusCompleted)},
	domain.JobStatusCancelled:  {string(domain.JobStatusQueued), string(domain.JobStatusInProgress)},
	domain.JobStatusCompleted:  {string(domain.JobStatusInProgress)},
	domain.JobStatusFailed:     {string(domain.JobStatusInProgress)},
}

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL and ensures
// the jobs table exists.
func NewJobRepository(ctx context.Context, pool *pgxpool.Pool) (*JobRepositoryPG, error) {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
    id            TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    opinion       TEXT NOT NULL DEFAULT '',
    tone          TEXT NOT NULL DEFAULT '',
    locale        TEXT NOT NULL DEFAULT '',
    image_options JSONB NOT NULL DEFAULT '{}',
    status        TEXT NOT NULL DEFAULT 'queued',
    error_message TEXT NOT NULL DEFAULT '',
    result_key    TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure jobs table: %w", err)
	}
	return &JobRepositoryPG{pool: pool}, nil
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	opts, err := json.Marshal(job.ImageOptions)
	if err != nil {
		return fmt.Errorf("encode image options: %w", err)
	}
	query := `
INSERT INTO jobs (id, url, opinion, tone, locale, image_options, status, error_message, result_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.URL,
		job.Opinion,
		job.Tone,
		job.Locale,
		opts,
		job.Status,
		job.ErrorMessage,
		job.ResultKey,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// UpdateStatus moves a job along the state machine. Transitions not allowed
// by the state machine return domain.ErrInvalidState; unknown jobs return
// domain.ErrNotFound.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultKey *string) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: target status %q", domain.ErrInvalidState, status)
	}
	query := `
UPDATE jobs
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message),
    result_key = COALESCE($4, result_key)
WHERE id = $1 AND status = ANY($5);
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, errMsg, resultKey, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, jobID); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: cannot move job %s to %s", domain.ErrInvalidState, jobID, status)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, url, opinion, tone, locale, image_options, status, error_message, result_key, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var job domain.Job
	var opts []byte
	if err := row.Scan(
		&job.ID,
		&job.URL,
		&job.Opinion,
		&job.Tone,
		&job.Locale,
		&opts,
		&job.Status,
		&job.ErrorMessage,
		&job.ResultKey,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &job.ImageOptions); err != nil {
			return nil, fmt.Errorf("decode image options: %w", err)
		}
	}
	return &job, nil
}
