package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postforge/internal/domain"
)

// JobRepositoryMem is an in-memory domain.JobRepository for tests and
// single-node development runs without a database.
type JobRepositoryMem struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewJobRepositoryMem creates an empty in-memory repository.
func NewJobRepositoryMem() *JobRepositoryMem {
	return &JobRepositoryMem{jobs: make(map[string]domain.Job)}
}

// Create inserts a new job record.
func (r *JobRepositoryMem) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	r.jobs[job.ID] = *job
	return nil
}

// UpdateStatus moves a job along the state machine, refusing transitions the
// state machine does not allow.
func (r *JobRepositoryMem) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if !job.Status.CanTransition(status) {
		return fmt.Errorf("%w: cannot move job %s from %s to %s", domain.ErrInvalidState, jobID, job.Status, status)
	}
	job.Status = status
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	if resultKey != nil {
		job.ResultKey = *resultKey
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryMem) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := job
	return &out, nil
}
