package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further pipeline work may happen in this state.
// Completed is terminal for the pipeline but may be transiently re-opened by
// the regeneration controller.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition encodes the job state machine. Transitions are monotonic: a
// job never moves backward except for the completed -> in_progress re-open
// used by regeneration, which must end in completed again.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return to == JobStatusInProgress || to == JobStatusCancelled
	case JobStatusInProgress:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCancelled
	case JobStatusCompleted:
		return to == JobStatusInProgress
	default:
		return false
	}
}

// ImageOptions is the per-job image generation option bag.
type ImageOptions struct {
	Style          string `json:"style"`
	AspectRatio    string `json:"aspect_ratio"`
	NegativePrompt string `json:"negative_prompt"`
	Quality        string `json:"quality"`
	Count          int    `json:"count"`
}

// Normalize applies server defaults to an option bag.
func (o *ImageOptions) Normalize() {
	if o == nil {
		return
	}
	if o.Style == "" {
		o.Style = "photographic"
	}
	if o.AspectRatio == "" {
		o.AspectRatio = "16:9"
	}
	if o.NegativePrompt == "" {
		o.NegativePrompt = "no text, no logos"
	}
	if o.Quality == "" {
		o.Quality = "standard"
	}
	if o.Count <= 0 {
		o.Count = 1
	}
}

// Job is the single source of truth for request state. It is mutated only by
// the orchestrator, the regeneration controller and the cancellation path.
type Job struct {
	ID           string
	URL          string
	Opinion      string
	Tone         string
	Locale       string
	ImageOptions ImageOptions
	Status       JobStatus
	ErrorMessage string
	ResultKey    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
