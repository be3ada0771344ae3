package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"postforge/internal/adapter/repo"
	"postforge/internal/artifact"
	"postforge/internal/domain"
	"postforge/internal/fetch"
)

const articlePage = `<html>
<head><title>Quarterly Update</title></head>
<body>
<p>The company shipped a new release with several performance improvements.</p>
<p>Customers reported meaningfully faster load times across the board.</p>
</body>
</html>`

const goodVariantsJSON = `{
	"A": {"text": "Variant A text", "hashtags": ["#one", "#two", "#three"], "suggested_comment": "Thoughts?", "alt_text": "alt a"},
	"B": {"text": "Variant B text", "hashtags": ["#x", "#y", "#z"], "suggested_comment": "Agree?", "alt_text": "alt b"}
}`

type orchestratorFixture struct {
	orch   *Orchestrator
	repo   *repo.JobRepositoryMem
	store  *artifact.Store
	server *httptest.Server
	image  *sequencedImage
}

// sequencedImage returns a distinct payload per successful call so tests can
// tell regenerated images apart from the originals.
type sequencedImage struct {
	failures int
	calls    int
}

func (s *sequencedImage) GenerateImage(_ context.Context, _, _, _ string) ([]byte, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("image backend unavailable")
	}
	return []byte{0x89, byte(s.calls)}, nil
}

func newFixture(t *testing.T, imageFailures int) *orchestratorFixture {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articlePage))
	}))
	t.Cleanup(server.Close)

	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	jobs := repo.NewJobRepositoryMem()
	text := &scriptedText{
		summary:    `{"summary": "Release shipped.", "bullets": ["fast", "stable", "smooth"]}`,
		variants:   goodVariantsJSON,
		imgPrompt:  "an office scene",
		moderation: `{"status": "pass", "notes": [], "confidence": "high"}`,
	}
	image := &sequencedImage{failures: imageFailures}
	stages := NewStages(text, image, testLogger())
	fetcher := fetch.New(fetch.Options{Attempts: 1, Backoff: time.Millisecond})
	orch := NewOrchestrator(jobs, store, fetcher, stages, domain.Providers{Text: "gemini-2.5-flash", Image: "gemini-2.5-flash"}, "http://localhost:8080", testLogger())

	return &orchestratorFixture{orch: orch, repo: jobs, store: store, server: server, image: image}
}

func (f *orchestratorFixture) createAndRun(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	jobID, err := f.orch.CreateJob(ctx, f.server.URL, "my take", "professional", "en", domain.ImageOptions{})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := f.orch.RunJob(ctx, jobID); err != nil {
		t.Fatalf("run job: %v", err)
	}
	return jobID
}

func TestRunJob_HappyPath(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)

	status, err := f.orch.GetStatus(context.Background(), jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error %q)", status.Status, status.Error)
	}
	if status.Result == nil {
		t.Fatalf("completed job must carry a result document")
	}

	result := status.Result
	if len(result.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(result.Variants))
	}
	for _, v := range result.Variants {
		if len(v.Hashtags) != 3 {
			t.Fatalf("variant %s hashtags: %#v", v.ID, v.Hashtags)
		}
		if len([]rune(v.Text)) > 1300 {
			t.Fatalf("variant %s text too long", v.ID)
		}
		if !strings.HasPrefix(v.ImageURL, "http://localhost:8080/images/"+jobID+"/") {
			t.Fatalf("variant %s image url: %q", v.ID, v.ImageURL)
		}
		if !f.store.ImageExists(jobID, v.ID) {
			t.Fatalf("variant %s image missing on disk", v.ID)
		}
	}
	if result.Provenance.SourceURL != f.server.URL || result.Provenance.Title != "Quarterly Update" {
		t.Fatalf("provenance: %+v", result.Provenance)
	}
	if result.Moderation.Status != domain.ModerationPass {
		t.Fatalf("moderation: %+v", result.Moderation)
	}

	// Intermediate artifacts survive next to the result.
	for _, kind := range []artifact.Kind{artifact.KindMetadata, artifact.KindScrape, artifact.KindSummary, artifact.KindResult} {
		if _, err := f.store.Get(jobID, kind); err != nil {
			t.Fatalf("artifact %s: %v", kind, err)
		}
	}
}

func TestCreateJob_UnreachableURLLeavesNoRecord(t *testing.T) {
	f := newFixture(t, 0)
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	_, err := f.orch.CreateJob(context.Background(), dead.URL, "", "", "en", domain.ImageOptions{})
	if !errors.Is(err, domain.ErrUnreachableURL) {
		t.Fatalf("expected ErrUnreachableURL, got %v", err)
	}

	entries, readErr := os.ReadDir(f.store.BasePath())
	if readErr != nil {
		t.Fatalf("read base dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("no artifacts should exist for a rejected job, found %d entries", len(entries))
	}
}

func TestCreateJob_InvalidURL(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.orch.CreateJob(context.Background(), "not-a-url", "", "", "en", domain.ImageOptions{})
	if !errors.Is(err, domain.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestRunJob_ImageFailureRecoveredBySweep(t *testing.T) {
	// Variant A's stage attempt fails twice (initial plus degraded retry);
	// variant B succeeds; the integrity sweep retry for A then succeeds.
	f := newFixture(t, 2)
	jobID := f.createAndRun(t)

	status, err := f.orch.GetStatus(context.Background(), jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed after sweep recovery, got %s (%q)", status.Status, status.Error)
	}
	for _, v := range status.Result.Variants {
		if !f.store.ImageExists(jobID, v.ID) {
			t.Fatalf("variant %s image missing after sweep", v.ID)
		}
		if v.ImageURL == "" {
			t.Fatalf("variant %s image url missing after sweep", v.ID)
		}
	}
}

func TestRunJob_PersistentImageFailureFailsJob(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	jobID, err := f.orch.CreateJob(ctx, f.server.URL, "", "", "en", domain.ImageOptions{})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := f.orch.RunJob(ctx, jobID); err == nil {
		t.Fatalf("expected run failure")
	}

	job, err := f.repo.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Fatalf("failed job must carry a non-empty error message")
	}
}

func TestCancel_QueuedJobNeverRuns(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	jobID, err := f.orch.CreateJob(ctx, f.server.URL, "", "", "en", domain.ImageOptions{})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := f.orch.Cancel(ctx, jobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.orch.RunJob(ctx, jobID); err != nil {
		t.Fatalf("run after cancel should be a no-op, got %v", err)
	}

	job, _ := f.repo.GetByID(ctx, jobID)
	if job.Status != domain.JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", job.Status)
	}
	if f.store.ImageExists(jobID, "A") {
		t.Fatalf("cancelled job should not have produced images")
	}
}

func TestCancel_CompletedJobRejected(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)
	if err := f.orch.Cancel(context.Background(), jobID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestGetStatus_NonCompletedHasNoResult(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	jobID, err := f.orch.CreateJob(ctx, f.server.URL, "", "", "en", domain.ImageOptions{})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	status, err := f.orch.GetStatus(ctx, jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.JobStatusQueued || status.Result != nil {
		t.Fatalf("queued status should carry no result: %+v", status)
	}
}

func TestGetStatus_UnknownJob(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.orch.GetStatus(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunJob_CompletedJobIsSkipped(t *testing.T) {
	f := newFixture(t, 0)
	jobID := f.createAndRun(t)
	callsBefore := f.image.calls
	if err := f.orch.RunJob(context.Background(), jobID); err != nil {
		t.Fatalf("re-run should skip, got %v", err)
	}
	if f.image.calls != callsBefore {
		t.Fatalf("re-run must not regenerate images")
	}
	job, _ := f.repo.GetByID(context.Background(), jobID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status changed by re-run: %s", job.Status)
	}
}
