// Package publish holds the outbound publishing port. The LinkedIn
// integration is stubbed: the contract is only that a variant id maps to a
// success/failure result with an opaque external id.
package publish

import (
	"context"
	"fmt"

	"postforge/internal/infra"
)

// Result reports the outcome of a publish attempt.
type Result struct {
	JobID      string `json:"job_id"`
	Published  bool   `json:"published"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Publisher is the publish port.
type Publisher interface {
	Publish(ctx context.Context, jobID, variantID, userID string) (*Result, error)
}

// LinkedInStub simulates publishing to LinkedIn with a deterministic
// external id.
type LinkedInStub struct {
	logger infra.Logger
}

// NewLinkedInStub creates the stub publisher.
func NewLinkedInStub(logger infra.Logger) *LinkedInStub {
	return &LinkedInStub{logger: logger}
}

// Publish returns a simulated success.
func (p *LinkedInStub) Publish(ctx context.Context, jobID, variantID, userID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	externalID := fmt.Sprintf("linkedin_%s_%s_%s", jobID, variantID, userID)
	p.logger.Info().Str("job_id", jobID).Str("variant", variantID).Str("external_id", externalID).Msg("publish: simulated publish")
	return &Result{JobID: jobID, Published: true, ExternalID: externalID}, nil
}
