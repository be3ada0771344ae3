package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusInProgress, true},
		{JobStatusQueued, JobStatusCancelled, true},
		{JobStatusQueued, JobStatusCompleted, false},
		{JobStatusQueued, JobStatusFailed, false},
		{JobStatusInProgress, JobStatusCompleted, true},
		{JobStatusInProgress, JobStatusFailed, true},
		{JobStatusInProgress, JobStatusCancelled, true},
		{JobStatusInProgress, JobStatusQueued, false},
		{JobStatusCompleted, JobStatusInProgress, true},
		{JobStatusCompleted, JobStatusQueued, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusQueued, false},
		{JobStatusFailed, JobStatusInProgress, false},
		{JobStatusCancelled, JobStatusInProgress, false},
		{JobStatusCancelled, JobStatusQueued, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Fatalf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusQueued, JobStatusInProgress} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestImageOptionsNormalize(t *testing.T) {
	var opts ImageOptions
	opts.Normalize()
	if opts.Style != "photographic" || opts.AspectRatio != "16:9" || opts.Quality != "standard" || opts.Count != 1 {
		t.Fatalf("defaults not applied: %+v", opts)
	}
	custom := ImageOptions{Style: "sketch", AspectRatio: "1:1", NegativePrompt: "none", Quality: "high", Count: 2}
	custom.Normalize()
	if custom.Style != "sketch" || custom.Count != 2 {
		t.Fatalf("custom values overwritten: %+v", custom)
	}
}

func TestMostSevere(t *testing.T) {
	if got := MostSevere(ModerationPass, ModerationReview); got != ModerationReview {
		t.Fatalf("pass vs review: got %s", got)
	}
	if got := MostSevere(ModerationReview, ModerationReject); got != ModerationReject {
		t.Fatalf("review vs reject: got %s", got)
	}
	if got := MostSevere(ModerationReject, ModerationPass); got != ModerationReject {
		t.Fatalf("reject vs pass: got %s", got)
	}
}
