package domain

import "context"

// JobRepository defines persistence for job records. UpdateStatus must refuse
// transitions the state machine does not allow, returning ErrInvalidState.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string, resultKey *string) error
}
