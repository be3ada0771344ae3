package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"postforge/internal/domain"
	"postforge/internal/middleware"
	"postforge/internal/pipeline"
)

type createPostRequest struct {
	URL          string              `json:"url"`
	Opinion      string              `json:"opinion"`
	Tone         string              `json:"tone"`
	ImageOptions domain.ImageOptions `json:"image_options"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (a *App) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.URL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "url required")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	jobID, err := a.Orchestrator.CreateJob(r.Context(), req.URL, req.Opinion, req.Tone, locale, req.ImageOptions)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidURL):
			a.error(w, http.StatusBadRequest, "invalid_url", err.Error())
		case errors.Is(err, domain.ErrUnreachableURL):
			a.error(w, http.StatusUnprocessableEntity, "unreachable_url", err.Error())
		default:
			a.Logger.Error().Err(err).Msg("handlers: create job failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		}
		return
	}

	if err := a.Runner.Submit(jobID); err != nil {
		// The job stays queued; a later submit or sweep can pick it up.
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("handlers: submit failed")
		if errors.Is(err, pipeline.ErrQueueFull) {
			a.error(w, http.StatusServiceUnavailable, "queue_full", "job queue is full, retry later")
			return
		}
	}

	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, Status: string(domain.JobStatusQueued)})
}

func (a *App) PostStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	status, err := a.Orchestrator.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, status)
}

func (a *App) PostCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if err := a.Orchestrator.Cancel(r.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrInvalidState):
			a.error(w, http.StatusConflict, "invalid_state", "job is not cancellable")
		default:
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: cancel failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
		}
		return
	}
	a.json(w, http.StatusOK, jobResponse{JobID: jobID, Status: string(domain.JobStatusCancelled)})
}

type regenerateRequest struct {
	Scope     string `json:"scope"`
	VariantID string `json:"variant_id"`
}

func (a *App) PostRegenerate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	err := a.Orchestrator.Regenerate(r.Context(), jobID, domain.RegenerateScope(req.Scope), req.VariantID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrInvalidState):
			a.error(w, http.StatusConflict, "invalid_state", "regeneration requires a completed job")
		default:
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: regenerate failed")
			a.error(w, http.StatusInternalServerError, "internal", "regeneration failed")
		}
		return
	}

	status, err := a.Orchestrator.GetStatus(r.Context(), jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job status after regenerate failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, status)
}

type publishRequest struct {
	VariantID string `json:"variant_id"`
	UserID    string `json:"user_id"`
}

func (a *App) PostPublish(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !domain.ValidVariantID(req.VariantID) {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown variant")
		return
	}

	status, err := a.Orchestrator.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if status.Status != domain.JobStatusCompleted || status.Result == nil {
		a.error(w, http.StatusConflict, "invalid_state", "publishing requires a completed job")
		return
	}
	if status.Result.Variant(req.VariantID) == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "variant missing from result")
		return
	}

	result, err := a.Publisher.Publish(r.Context(), jobID, req.VariantID, req.UserID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: publish failed")
		a.error(w, http.StatusInternalServerError, "internal", "publish failed")
		return
	}
	a.json(w, http.StatusOK, result)
}
