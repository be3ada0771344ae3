package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"postforge/internal/domain"
	"postforge/internal/infra"
	"postforge/internal/normalize"
	"postforge/internal/prompts"
)

const (
	summaryInputLimit  = 2000
	imageContextLimit  = 100
	maxVariantTextLen  = 1300
	summaryTokens      = 300
	variantTokens      = 800
	imagePromptTokens  = 200
	moderationTokens   = 200
	summaryTemperature = 0.3
	variantTemperature = 0.7
	imageTemperature   = 0.5
	moderationTemp     = 0.1
)

// Stages holds the pure stage transformations of the pipeline. Each stage
// maps a typed input to a typed output, calling the generation ports and
// recovering from degenerate output with deterministic fallbacks.
type Stages struct {
	text   TextGenerator
	image  ImageGenerator
	logger infra.Logger
}

// NewStages wires the generation ports into the stage set.
func NewStages(text TextGenerator, image ImageGenerator, logger infra.Logger) *Stages {
	return &Stages{text: text, image: image, logger: logger}
}

// Summarize condenses the scraped body text. Parse failures never fail the
// job: the raw response becomes the summary with generic placeholder bullets.
func (s *Stages) Summarize(ctx context.Context, mainText string) *domain.Summary {
	raw, err := s.text.GenerateText(ctx, prompts.Summary(normalize.Truncate(mainText, summaryInputLimit)), summaryTokens, summaryTemperature)
	if err != nil {
		s.logger.Warn().Err(err).Msg("pipeline: summary generation failed")
		return &domain.Summary{
			Summary: "Summary generation failed. Please try again.",
			Bullets: []string{"Error occurred during generation"},
		}
	}

	text := normalize.CoerceToString(raw)
	obj, err := normalize.ExtractObject(text)
	if err == nil {
		if summary, ok := obj["summary"].(string); ok && summary != "" {
			return &domain.Summary{
				Summary: summary,
				Bullets: stringSlice(obj["bullets"]),
			}
		}
	}

	return &domain.Summary{
		Summary: text,
		Bullets: []string{"Key point 1", "Key point 2", "Key point 3"},
	}
}

// DraftVariants produces exactly two post variants. It never raises: on empty
// text, missing keys or parse failure it synthesizes deterministic fallback
// variants from the summary and the user's opinion, so image generation can
// always proceed.
func (s *Stages) DraftVariants(ctx context.Context, summary *domain.Summary, opinion, tone, locale string) []domain.PostVariant {
	raw, err := s.text.GenerateText(ctx, prompts.Variants(summary.Summary, summary.Bullets, opinion, tone, locale), variantTokens, variantTemperature)
	if err != nil {
		s.logger.Warn().Err(err).Msg("pipeline: variant generation failed")
		return fallbackVariants(summary.Summary, opinion)
	}

	text := strings.TrimSpace(normalize.CoerceToString(raw))
	if text == "" {
		s.logger.Warn().Msg("pipeline: variant provider returned empty response")
		return fallbackVariants(summary.Summary, opinion)
	}

	obj, err := normalize.ExtractObject(text)
	if err != nil {
		var parseErr *normalize.ParseError
		if errors.As(err, &parseErr) {
			s.logger.Warn().Str("preview", parseErr.Preview).Msg("pipeline: variant response not parseable")
		}
		return fallbackVariants(summary.Summary, opinion)
	}

	variants := make([]domain.PostVariant, 0, len(domain.VariantIDs))
	for _, id := range domain.VariantIDs {
		entry, ok := obj[id].(map[string]any)
		if !ok {
			return fallbackVariants(summary.Summary, opinion)
		}
		text, _ := entry["text"].(string)
		if strings.TrimSpace(text) == "" {
			return fallbackVariants(summary.Summary, opinion)
		}
		variants = append(variants, domain.PostVariant{
			ID:               id,
			Text:             normalize.Truncate(text, maxVariantTextLen),
			Hashtags:         normalizeHashtags(stringSlice(entry["hashtags"])),
			SuggestedComment: stringOr(entry["suggested_comment"], "What are your thoughts on this?"),
			AltText:          stringOr(entry["alt_text"], "Illustration for the post"),
		})
	}
	return variants
}

// GenerateImage derives an image prompt from the variant text, then calls the
// image port. On failure it retries once with degraded negative-prompt
// context. Only a port that yields no bytes at all fails the stage.
func (s *Stages) GenerateImage(ctx context.Context, variant *domain.PostVariant, opts domain.ImageOptions) ([]byte, error) {
	imagePrompt, err := s.text.GenerateText(ctx,
		prompts.ImagePrompt(normalize.Truncate(variant.Text, imageContextLimit), opts.Style, opts.NegativePrompt),
		imagePromptTokens, imageTemperature)
	if err != nil || strings.TrimSpace(imagePrompt) == "" {
		imagePrompt = fmt.Sprintf("Professional %s image illustrating: %s", opts.Style, normalize.Truncate(variant.Text, imageContextLimit))
	}

	data, err := s.image.GenerateImage(ctx, imagePrompt, opts.NegativePrompt, opts.AspectRatio)
	if err != nil || len(data) == 0 {
		if err != nil {
			s.logger.Warn().Err(err).Str("variant", variant.ID).Msg("pipeline: image generation failed, retrying with degraded context")
		}
		data, err = s.image.GenerateImage(ctx, imagePrompt, "", opts.AspectRatio)
	}
	if err != nil {
		return nil, fmt.Errorf("generate image for variant %s: %w", variant.ID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("generate image for variant %s: %w: empty image bytes", variant.ID, domain.ErrProviderFailure)
	}
	return data, nil
}

// Moderate runs the moderation prompt once per variant. Empty or unparsable
// responses record a conservative review/low verdict instead of blocking the
// pipeline. The aggregate status is a precedence fold, never an average.
func (s *Stages) Moderate(ctx context.Context, variants []domain.PostVariant) domain.ModerationVerdict {
	verdict := domain.ModerationVerdict{
		Status:   domain.ModerationPass,
		Variants: make([]domain.VariantVerdict, 0, len(variants)),
		Notes:    []string{},
	}

	for _, variant := range variants {
		vv := s.moderateVariant(ctx, variant)
		verdict.Variants = append(verdict.Variants, vv)
		verdict.Status = domain.MostSevere(verdict.Status, vv.Status)
	}
	return verdict
}

func (s *Stages) moderateVariant(ctx context.Context, variant domain.PostVariant) domain.VariantVerdict {
	conservative := domain.VariantVerdict{
		VariantID:  variant.ID,
		Status:     domain.ModerationReview,
		Notes:      []string{"Moderation service unavailable"},
		Confidence: "low",
	}

	raw, err := s.text.GenerateText(ctx, prompts.Moderation(variant.Text, variant.Hashtags, variant.SuggestedComment), moderationTokens, moderationTemp)
	if err != nil {
		s.logger.Warn().Err(err).Str("variant", variant.ID).Msg("pipeline: moderation call failed")
		return conservative
	}
	text := strings.TrimSpace(normalize.CoerceToString(raw))
	if text == "" {
		return conservative
	}

	obj, err := normalize.ExtractObject(text)
	if err != nil {
		conservative.Notes = []string{"Moderation parsing failed"}
		return conservative
	}

	status := domain.ModerationStatus(stringOr(obj["status"], string(domain.ModerationReview)))
	switch status {
	case domain.ModerationPass, domain.ModerationReview, domain.ModerationReject:
	default:
		status = domain.ModerationReview
	}
	return domain.VariantVerdict{
		VariantID:  variant.ID,
		Status:     status,
		Notes:      stringSlice(obj["notes"]),
		Confidence: stringOr(obj["confidence"], "medium"),
	}
}

// fallbackVariants builds the two deterministic variants used whenever the
// model output is unusable.
func fallbackVariants(summary, opinion string) []domain.PostVariant {
	excerpt := normalize.Truncate(summary, 100)
	return []domain.PostVariant{
		{
			ID:               "A",
			Text:             fmt.Sprintf("Interesting article about %s %s #AI #Tech #Innovation", excerpt, opinion),
			Hashtags:         []string{"#AI", "#Tech", "#Innovation"},
			SuggestedComment: "What are your thoughts on this?",
			AltText:          "AI technology illustration",
		},
		{
			ID:               "B",
			Text:             fmt.Sprintf("Another perspective: %s %s #Future #Digital #Trends", excerpt, opinion),
			Hashtags:         []string{"#Future", "#Digital", "#Trends"},
			SuggestedComment: "How does this impact your industry?",
			AltText:          "Digital transformation concept",
		},
	}
}

// normalizeHashtags pads or trims to exactly three tags.
func normalizeHashtags(tags []string) []string {
	defaults := []string{"#AI", "#Tech", "#Innovation"}
	out := make([]string, 0, 3)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
		if len(out) == 3 {
			return out
		}
	}
	for _, tag := range defaults {
		if len(out) == 3 {
			break
		}
		out = append(out, tag)
	}
	return out
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}
