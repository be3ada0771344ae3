package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"postforge/internal/artifact"
	"postforge/internal/domain"
)

// Regenerate re-runs the draft and/or image stage for a single variant of a
// completed job and rewrites only that variant's fields in the persisted
// result document. The untouched variant and the summarize/moderate/fetch
// outputs are never re-run. On failure the prior result document is left
// untouched.
//
// The job record status acts as the lock between regeneration and any
// concurrent pipeline run: the completed -> in_progress transition must
// succeed before any work happens, and the job is returned to completed on
// both success and failure.
func (o *Orchestrator) Regenerate(ctx context.Context, jobID string, scope domain.RegenerateScope, variantID string) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: regenerate scope %q", domain.ErrInvalidArgument, scope)
	}
	if !domain.ValidVariantID(variantID) {
		return fmt.Errorf("%w: variant %q", domain.ErrInvalidArgument, variantID)
	}

	job, err := o.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusCompleted {
		return fmt.Errorf("%w: job %s is %s, regeneration requires completed", domain.ErrInvalidState, jobID, job.Status)
	}
	if err := o.repo.UpdateStatus(ctx, jobID, domain.JobStatusInProgress, nil, nil); err != nil {
		return fmt.Errorf("%w: job %s claimed concurrently", domain.ErrInvalidState, jobID)
	}
	// The transient re-open always ends back in completed; the prior result
	// artifact is only replaced after every step succeeded.
	defer func() {
		if err := o.repo.UpdateStatus(ctx, jobID, domain.JobStatusCompleted, nil, nil); err != nil {
			o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: restore completed status failed")
		}
	}()

	data, err := o.store.Get(jobID, artifact.KindResult)
	if err != nil {
		return fmt.Errorf("load result for job %s: %w", jobID, err)
	}
	var result domain.ResultDocument
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("decode result for job %s: %w", jobID, err)
	}
	variant := result.Variant(variantID)
	if variant == nil {
		return fmt.Errorf("%w: variant %s missing from result", domain.ErrInvalidArgument, variantID)
	}

	if scope.IncludesText() {
		if err := o.regenerateText(ctx, job, variant); err != nil {
			return err
		}
	}
	if scope.IncludesImage() {
		if err := o.regenerateImage(ctx, job, variant); err != nil {
			return err
		}
	}

	if err := o.putJSON(jobID, artifact.KindResult, &result); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", jobID).Str("variant", variantID).Str("scope", string(scope)).Msg("pipeline: variant regenerated")
	return nil
}

// regenerateText re-runs the draft stage with the job's original opinion and
// tone and copies over only the targeted variant's fields.
func (o *Orchestrator) regenerateText(ctx context.Context, job *domain.Job, variant *domain.PostVariant) error {
	summary, err := o.loadSummary(job.ID)
	if err != nil {
		return err
	}
	fresh := o.stages.DraftVariants(ctx, summary, job.Opinion, job.Tone, job.Locale)
	for _, candidate := range fresh {
		if candidate.ID != variant.ID {
			continue
		}
		variant.Text = candidate.Text
		variant.Hashtags = candidate.Hashtags
		variant.SuggestedComment = candidate.SuggestedComment
		variant.AltText = candidate.AltText
		return nil
	}
	return fmt.Errorf("regenerated variants missing %s", variant.ID)
}

// regenerateImage re-runs the image stage and replaces the stored image blob.
func (o *Orchestrator) regenerateImage(ctx context.Context, job *domain.Job, variant *domain.PostVariant) error {
	data, err := o.stages.GenerateImage(ctx, variant, job.ImageOptions)
	if err != nil {
		return err
	}
	if err := o.store.PutImage(job.ID, variant.ID, data); err != nil {
		return fmt.Errorf("persist regenerated image: %w", err)
	}
	variant.ImageURL = o.imageURL(job.ID, variant.ID)
	return nil
}

func (o *Orchestrator) loadSummary(jobID string) (*domain.Summary, error) {
	data, err := o.store.Get(jobID, artifact.KindSummary)
	if err != nil {
		return nil, fmt.Errorf("load summary for job %s: %w", jobID, err)
	}
	var summary domain.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode summary for job %s: %w", jobID, err)
	}
	return &summary, nil
}
