package pipeline

import "context"

// TextGenerator is the text generation port. Implementations may return an
// empty string and are never guaranteed to return well-formed structured data.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ImageGenerator is the image generation port. Implementations are expected
// to return non-empty bytes even in degraded or placeholder form; empty bytes
// signal a stage-fatal condition.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, negativePrompt, size string) ([]byte, error)
}
