package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// syntheticText produces a deterministic stand-in for a model response so the
// pipeline remains exercisable without an API key. The output is deliberately
// unstructured; stage fallbacks handle it the same way they handle any
// non-JSON model reply.
func syntheticText(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "summarize"):
		return "This is a concise summary of the article covering its key insights and main points."
	case strings.Contains(lower, "post variants"):
		return "This is a compelling social post that engages readers with thought-provoking content."
	case strings.Contains(lower, "image prompt"):
		return "A clean professional illustration related to the article topic, soft lighting, no text."
	default:
		return "This is generated content based on your request."
	}
}

// syntheticImage renders a deterministic placeholder PNG keyed off the prompt.
func syntheticImage(prompt, size string) []byte {
	width, height := dimensionsForSize(size)
	seed := deterministicSeed(prompt, size)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := maxInt(16, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, minInt(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// A bare 1x1 PNG keeps the non-empty contract even if encoding fails.
		return []byte{0x89, 'P', 'N', 'G'}
	}
	return buf.Bytes()
}

func dimensionsForSize(size string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(size)) {
	case "16:9":
		return 640, 360
	case "9:16":
		return 360, 640
	case "4:5":
		return 512, 640
	case "1:1", "square", "":
		return 512, 512
	default:
		parts := strings.Split(size, ":")
		if len(parts) == 2 {
			a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
			b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
			if errA == nil && errB == nil && a > 0 && b > 0 {
				width := 512
				return width, width * b / a
			}
		}
		return 512, 512
	}
}

func deterministicSeed(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:12]
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = fmt.Sprintf("%-6s", seed)
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
