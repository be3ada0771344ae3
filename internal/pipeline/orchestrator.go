package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"postforge/internal/artifact"
	"postforge/internal/domain"
	"postforge/internal/fetch"
	"postforge/internal/infra"
	"postforge/internal/normalize"
)

const provenanceExcerptLen = 200

// Orchestrator drives jobs through the pipeline stages, persisting each
// stage's artifact immediately after production and keeping the job record
// consistent with what a polling client may observe.
type Orchestrator struct {
	repo      domain.JobRepository
	store     *artifact.Store
	fetcher   *fetch.Fetcher
	stages    *Stages
	providers domain.Providers
	baseURL   string
	logger    infra.Logger
}

// NewOrchestrator wires the orchestrator's collaborators. providers names the
// text/image backends recorded in result documents; baseURL prefixes the
// public image references.
func NewOrchestrator(repo domain.JobRepository, store *artifact.Store, fetcher *fetch.Fetcher, stages *Stages, providers domain.Providers, baseURL string, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		store:     store,
		fetcher:   fetcher,
		stages:    stages,
		providers: providers,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// Status is the polling view of a job: either a full result document or none.
type Status struct {
	JobID  string                 `json:"job_id"`
	Status domain.JobStatus       `json:"status"`
	Error  string                 `json:"error,omitempty"`
	Result *domain.ResultDocument `json:"result,omitempty"`
}

type jobMetadata struct {
	JobID        string              `json:"job_id"`
	URL          string              `json:"url"`
	Opinion      string              `json:"opinion"`
	Tone         string              `json:"tone"`
	Locale       string              `json:"locale,omitempty"`
	ImageOptions domain.ImageOptions `json:"image_options"`
	CreatedAt    time.Time           `json:"created_at"`
}

// CreateJob validates the URL syntactically and via the fetcher's
// reachability check, then persists the job metadata and record in queued
// state. Validation failures never leave a job record behind.
func (o *Orchestrator) CreateJob(ctx context.Context, rawURL, opinion, tone, locale string, opts domain.ImageOptions) (string, error) {
	if !fetch.ValidURL(rawURL) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}
	if err := o.fetcher.CheckReachable(ctx, rawURL); err != nil {
		return "", err
	}

	opts.Normalize()
	jobID := uuid.NewString()

	if _, err := o.store.Ensure(jobID); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	meta := jobMetadata{
		JobID:        jobID,
		URL:          rawURL,
		Opinion:      opinion,
		Tone:         tone,
		Locale:       locale,
		ImageOptions: opts,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.putJSON(jobID, artifact.KindMetadata, meta); err != nil {
		// Metadata is diagnostic only; job creation proceeds.
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("pipeline: persist job metadata failed")
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:           jobID,
		URL:          rawURL,
		Opinion:      opinion,
		Tone:         tone,
		Locale:       locale,
		ImageOptions: opts,
		Status:       domain.JobStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.repo.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}

	o.logger.Info().Str("job_id", jobID).Str("url", rawURL).Msg("pipeline: job created")
	return jobID, nil
}

// RunJob executes the stages in strict sequence. Side effects are strictly
// additive per stage: artifacts produced before a failure are retained for
// diagnostics. Cancellation is cooperative and checked at stage boundaries.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) error {
	job, err := o.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	// Only queued jobs are runnable; the completed -> in_progress transition
	// is reserved for the regeneration controller.
	if job.Status != domain.JobStatusQueued {
		o.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("pipeline: job not queued, skipping")
		return nil
	}

	// Claiming the job doubles as the cancellation check: a job cancelled
	// while queued refuses the transition.
	if err := o.repo.UpdateStatus(ctx, jobID, domain.JobStatusInProgress, nil, nil); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			o.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("pipeline: job not runnable, skipping")
			return nil
		}
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	// Stage 1: fetch. Job-fatal on failure.
	scrape, err := o.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return o.failJob(ctx, jobID, fmt.Sprintf("failed to fetch source: %v", err))
	}
	if err := o.putJSON(jobID, artifact.KindScrape, scrape); err != nil {
		return o.failJob(ctx, jobID, err.Error())
	}

	if o.cancelled(ctx, jobID) {
		return nil
	}

	// Stage 2: summarize. Falls back internally, never job-fatal.
	summary := o.stages.Summarize(ctx, scrape.MainText)
	if err := o.putJSON(jobID, artifact.KindSummary, summary); err != nil {
		return o.failJob(ctx, jobID, err.Error())
	}

	if o.cancelled(ctx, jobID) {
		return nil
	}

	// Stage 3: draft variants. Always yields exactly two.
	variants := o.stages.DraftVariants(ctx, summary, job.Opinion, job.Tone, job.Locale)

	if o.cancelled(ctx, jobID) {
		return nil
	}

	// Stage 4: generate and persist an image per variant.
	for i := range variants {
		data, err := o.stages.GenerateImage(ctx, &variants[i], job.ImageOptions)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Str("variant", variants[i].ID).Msg("pipeline: image stage failed, deferring to integrity sweep")
			continue
		}
		if err := o.store.PutImage(jobID, variants[i].ID, data); err != nil {
			return o.failJob(ctx, jobID, fmt.Sprintf("persist image for variant %s: %v", variants[i].ID, err))
		}
		variants[i].ImageURL = o.imageURL(jobID, variants[i].ID)
	}

	if o.cancelled(ctx, jobID) {
		return nil
	}

	// Stage 5: moderate.
	verdict := o.stages.Moderate(ctx, variants)

	// Stage 6: assemble and persist the result document.
	result := &domain.ResultDocument{
		JobID: jobID,
		Provenance: domain.Provenance{
			SourceURL: job.URL,
			Title:     scrape.Title,
			Excerpt:   normalize.Truncate(scrape.MainText, provenanceExcerptLen),
		},
		Variants:   variants,
		Providers:  o.providers,
		Moderation: verdict,
	}
	if err := o.putJSON(jobID, artifact.KindResult, result); err != nil {
		return o.failJob(ctx, jobID, err.Error())
	}

	// Integrity sweep: a result document is never published with a variant
	// lacking a resolvable image. One targeted retry per missing image.
	if err := o.sweepMissingImages(ctx, job, result); err != nil {
		return o.failJob(ctx, jobID, err.Error())
	}

	resultKey := string(artifact.KindResult)
	if err := o.repo.UpdateStatus(ctx, jobID, domain.JobStatusCompleted, nil, &resultKey); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			// Cancelled during the final stages; result artifacts remain.
			return nil
		}
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	o.logger.Info().Str("job_id", jobID).Msg("pipeline: job completed")
	return nil
}

// sweepMissingImages confirms each variant's image artifact exists, retrying
// generation exactly once per missing image. Remaining gaps are job-fatal.
func (o *Orchestrator) sweepMissingImages(ctx context.Context, job *domain.Job, result *domain.ResultDocument) error {
	var missing []string
	for _, v := range result.Variants {
		if !o.store.ImageExists(job.ID, v.ID) {
			missing = append(missing, v.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	o.logger.Warn().Str("job_id", job.ID).Strs("variants", missing).Msg("pipeline: missing images, attempting one retry")
	for _, id := range missing {
		variant := result.Variant(id)
		if variant == nil {
			continue
		}
		data, err := o.stages.GenerateImage(ctx, variant, job.ImageOptions)
		if err != nil {
			o.logger.Error().Err(err).Str("job_id", job.ID).Str("variant", id).Msg("pipeline: image retry failed")
			continue
		}
		if err := o.store.PutImage(job.ID, id, data); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.ID).Str("variant", id).Msg("pipeline: persist retried image failed")
			continue
		}
		variant.ImageURL = o.imageURL(job.ID, id)
	}
	if err := o.putJSON(job.ID, artifact.KindResult, result); err != nil {
		return err
	}

	var stillMissing []string
	for _, v := range result.Variants {
		if !o.store.ImageExists(job.ID, v.ID) {
			stillMissing = append(stillMissing, v.ID)
		}
	}
	if len(stillMissing) > 0 {
		return fmt.Errorf("images missing after retry for variants %s", strings.Join(stillMissing, ", "))
	}
	return nil
}

// Cancel moves a queued or in_progress job to cancelled. Any other state is
// rejected with domain.ErrInvalidState.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	if err := o.repo.UpdateStatus(ctx, jobID, domain.JobStatusCancelled, nil, nil); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", jobID).Msg("pipeline: job cancelled")
	return nil
}

// GetStatus returns the polling view. Completed jobs include the full result
// document; all other states return none.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*Status, error) {
	job, err := o.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	status := &Status{JobID: job.ID, Status: job.Status, Error: job.ErrorMessage}
	if job.Status != domain.JobStatusCompleted {
		return status, nil
	}
	data, err := o.store.Get(jobID, artifact.KindResult)
	if err != nil {
		return nil, fmt.Errorf("load result for job %s: %w", jobID, err)
	}
	var result domain.ResultDocument
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result for job %s: %w", jobID, err)
	}
	status.Result = &result
	return status, nil
}

// failJob records a job-fatal error. The error message recorded is always
// non-empty.
func (o *Orchestrator) failJob(ctx context.Context, jobID, msg string) error {
	if msg == "" {
		msg = "job failed"
	}
	o.logger.Error().Str("job_id", jobID).Str("error", msg).Msg("pipeline: job failed")
	if err := o.repo.UpdateStatus(ctx, jobID, domain.JobStatusFailed, &msg, nil); err != nil && !errors.Is(err, domain.ErrInvalidState) {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: record job failure failed")
	}
	return fmt.Errorf("job %s failed: %s", jobID, msg)
}

// cancelled reports whether the job was cancelled since the last stage
// boundary.
func (o *Orchestrator) cancelled(ctx context.Context, jobID string) bool {
	job, err := o.repo.GetByID(ctx, jobID)
	if err != nil {
		return false
	}
	if job.Status == domain.JobStatusCancelled {
		o.logger.Info().Str("job_id", jobID).Msg("pipeline: job cancelled, stopping between stages")
		return true
	}
	return false
}

func (o *Orchestrator) putJSON(jobID string, kind artifact.Kind, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", kind, err)
	}
	if err := o.store.Put(jobID, kind, data); err != nil {
		return fmt.Errorf("persist %s artifact: %w", kind, err)
	}
	return nil
}

func (o *Orchestrator) imageURL(jobID, variantID string) string {
	return fmt.Sprintf("%s/images/%s/%s.png", o.baseURL, jobID, variantID)
}
