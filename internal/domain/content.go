package domain

import "time"

// VariantIDs is the fixed set of post variant labels produced per job.
var VariantIDs = []string{"A", "B"}

// ValidVariantID reports whether id names one of the two variants.
func ValidVariantID(id string) bool {
	for _, v := range VariantIDs {
		if v == id {
			return true
		}
	}
	return false
}

// RegenerateScope selects which parts of a variant to rebuild.
type RegenerateScope string

const (
	RegenerateText  RegenerateScope = "text"
	RegenerateImage RegenerateScope = "image"
	RegenerateBoth  RegenerateScope = "both"
)

// Valid reports whether the scope is one of the supported values.
func (s RegenerateScope) Valid() bool {
	switch s {
	case RegenerateText, RegenerateImage, RegenerateBoth:
		return true
	}
	return false
}

// IncludesText reports whether variant text must be regenerated.
func (s RegenerateScope) IncludesText() bool {
	return s == RegenerateText || s == RegenerateBoth
}

// IncludesImage reports whether the variant image must be regenerated.
func (s RegenerateScope) IncludesImage() bool {
	return s == RegenerateImage || s == RegenerateBoth
}

// ScrapeResult is the immutable output of the content fetcher.
type ScrapeResult struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	MainText  string    `json:"main_text"`
	Bullets   []string  `json:"bullets"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Summary is the narrative condensation of a scrape result.
type Summary struct {
	Summary string   `json:"summary"`
	Bullets []string `json:"bullets"`
}

// PostVariant is one of the two alternative generated posts.
type PostVariant struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Hashtags         []string `json:"hashtags"`
	SuggestedComment string   `json:"suggested_comment"`
	AltText          string   `json:"alt_text"`
	ImageURL         string   `json:"image_url"`
}

// ModerationStatus is the per-variant and aggregate moderation outcome.
type ModerationStatus string

const (
	ModerationPass   ModerationStatus = "pass"
	ModerationReview ModerationStatus = "review"
	ModerationReject ModerationStatus = "reject"
)

// severity orders statuses for the aggregate precedence fold.
func (m ModerationStatus) severity() int {
	switch m {
	case ModerationReject:
		return 2
	case ModerationReview:
		return 1
	default:
		return 0
	}
}

// MostSevere returns the stricter of the two statuses (reject > review > pass).
func MostSevere(a, b ModerationStatus) ModerationStatus {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// VariantVerdict is the moderation verdict for a single variant.
type VariantVerdict struct {
	VariantID  string           `json:"variant_id"`
	Status     ModerationStatus `json:"status"`
	Notes      []string         `json:"notes"`
	Confidence string           `json:"confidence"`
}

// ModerationVerdict aggregates per-variant verdicts for a job.
type ModerationVerdict struct {
	Status   ModerationStatus `json:"status"`
	Variants []VariantVerdict `json:"variants"`
	Notes    []string         `json:"notes"`
}

// Provenance records where the generated content came from.
type Provenance struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
}

// Providers records which generation backends produced the content.
type Providers struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// ResultDocument is the job's terminal artifact. Variants carry publicly
// resolvable image URLs, never filesystem paths.
type ResultDocument struct {
	JobID      string            `json:"job_id"`
	Provenance Provenance        `json:"provenance"`
	Variants   []PostVariant     `json:"post_variants"`
	Providers  Providers         `json:"providers"`
	Moderation ModerationVerdict `json:"moderation"`
}

// Variant returns a pointer to the variant with the given id, or nil.
func (d *ResultDocument) Variant(id string) *PostVariant {
	for i := range d.Variants {
		if d.Variants[i].ID == id {
			return &d.Variants[i]
		}
	}
	return nil
}
