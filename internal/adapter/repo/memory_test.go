package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"postforge/internal/domain"
)

func seedJob(t *testing.T, r *JobRepositoryMem, status domain.JobStatus) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:        "job-1",
		URL:       "https://example.com",
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	return job
}

func TestMemRepo_CreateAndGet(t *testing.T) {
	r := NewJobRepositoryMem()
	seedJob(t, r, domain.JobStatusQueued)

	got, err := r.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.URL != "https://example.com" || got.Status != domain.JobStatusQueued {
		t.Fatalf("unexpected job: %+v", got)
	}

	if err := r.Create(context.Background(), &domain.Job{ID: "job-1"}); err == nil {
		t.Fatalf("duplicate create should fail")
	}
	if _, err := r.GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemRepo_UpdateStatusEnforcesTransitions(t *testing.T) {
	r := NewJobRepositoryMem()
	seedJob(t, r, domain.JobStatusQueued)
	ctx := context.Background()

	// queued -> completed is not a legal move.
	if err := r.UpdateStatus(ctx, "job-1", domain.JobStatusCompleted, nil, nil); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if err := r.UpdateStatus(ctx, "job-1", domain.JobStatusInProgress, nil, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	resultKey := "result"
	if err := r.UpdateStatus(ctx, "job-1", domain.JobStatusCompleted, nil, &resultKey); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := r.GetByID(ctx, "job-1")
	if got.Status != domain.JobStatusCompleted || got.ResultKey != "result" {
		t.Fatalf("unexpected job after completion: %+v", got)
	}

	// Terminal failed/cancelled states refuse further moves.
	if err := r.UpdateStatus(ctx, "job-1", domain.JobStatusFailed, nil, nil); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("completed -> failed should be refused, got %v", err)
	}

	if err := r.UpdateStatus(ctx, "missing", domain.JobStatusCancelled, nil, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemRepo_ErrorMessageRecorded(t *testing.T) {
	r := NewJobRepositoryMem()
	seedJob(t, r, domain.JobStatusQueued)
	ctx := context.Background()

	if err := r.UpdateStatus(ctx, "job-1", domain.JobStatusInProgress, nil, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	msg := "failed to fetch source"
	if err := r.UpdateStatus(ctx, "job-1", domain.JobStatusFailed, &msg, nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := r.GetByID(ctx, "job-1")
	if got.ErrorMessage != msg {
		t.Fatalf("error message: %q", got.ErrorMessage)
	}
}
