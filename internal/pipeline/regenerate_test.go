package pipeline

import (
	"context"
	"errors"
	"testing"

	"postforge/internal/domain"
)

func TestRegenerate_ImageScopeReplacesOnlyTargetVariant(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)
	ctx := context.Background()

	imgABefore, err := f.store.GetImage(jobID, "A")
	if err != nil {
		t.Fatalf("read image A: %v", err)
	}
	imgBBefore, err := f.store.GetImage(jobID, "B")
	if err != nil {
		t.Fatalf("read image B: %v", err)
	}

	if err := f.orch.Regenerate(ctx, jobID, domain.RegenerateImage, "A"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	imgAAfter, _ := f.store.GetImage(jobID, "A")
	if string(imgAAfter) == string(imgABefore) {
		t.Fatalf("variant A image should have been replaced")
	}
	imgBAfter, _ := f.store.GetImage(jobID, "B")
	if string(imgBAfter) != string(imgBBefore) {
		t.Fatalf("variant B image must not change")
	}

	job, _ := f.repo.GetByID(ctx, jobID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("job must return to completed, got %s", job.Status)
	}
}

func TestRegenerate_TextScopeLeavesOtherVariantUntouched(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)
	ctx := context.Background()

	before, err := f.orch.GetStatus(ctx, jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	bBefore := *before.Result.Variant("B")

	if err := f.orch.Regenerate(ctx, jobID, domain.RegenerateText, "A"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	after, err := f.orch.GetStatus(ctx, jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	a := after.Result.Variant("A")
	if a == nil || a.Text == "" || len(a.Hashtags) != 3 {
		t.Fatalf("regenerated variant A malformed: %+v", a)
	}
	b := after.Result.Variant("B")
	if b.Text != bBefore.Text || b.ImageURL != bBefore.ImageURL {
		t.Fatalf("variant B changed: before %+v after %+v", bBefore, *b)
	}
}

func TestRegenerate_InvalidArguments(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)
	ctx := context.Background()

	if err := f.orch.Regenerate(ctx, jobID, "everything", "A"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad scope: got %v", err)
	}
	if err := f.orch.Regenerate(ctx, jobID, domain.RegenerateBoth, "C"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad variant: got %v", err)
	}
}

func TestRegenerate_RequiresCompletedJob(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	jobID, err := f.orch.CreateJob(ctx, f.server.URL, "", "", "en", domain.ImageOptions{})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := f.orch.Regenerate(ctx, jobID, domain.RegenerateText, "A"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for queued job, got %v", err)
	}
}

func TestRegenerate_ImageFailureKeepsPriorResult(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)
	ctx := context.Background()

	before, _ := f.orch.GetStatus(ctx, jobID)
	imgBefore, _ := f.store.GetImage(jobID, "A")

	// Every image call from here on fails.
	f.image.failures = f.image.calls + 1000

	if err := f.orch.Regenerate(ctx, jobID, domain.RegenerateImage, "A"); err == nil {
		t.Fatalf("expected regeneration failure")
	}

	after, err := f.orch.GetStatus(ctx, jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if after.Status != domain.JobStatusCompleted {
		t.Fatalf("job must return to completed after failed regeneration, got %s", after.Status)
	}
	if after.Result.Variant("A").ImageURL != before.Result.Variant("A").ImageURL {
		t.Fatalf("result document must be unchanged after failed regeneration")
	}
	imgAfter, _ := f.store.GetImage(jobID, "A")
	if string(imgAfter) != string(imgBefore) {
		t.Fatalf("stored image must be unchanged after failed regeneration")
	}
}
