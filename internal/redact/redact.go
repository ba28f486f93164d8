// Package redact masks sensitive UK/IE identifiers in extracted payslip text
// before anything is sent to an external inference service.
package redact

import (
	"context"
	"regexp"
	"strings"
)

// Regex heuristics for UK/IE identifiers.
var (
	niRegex       = regexp.MustCompile(`(?i)\b([A-CEGHJ-PR-TW-Z]{2}\d{6}[A-D])\b`)
	ppsRegex      = regexp.MustCompile(`(?i)\b\d{7}[A-W]\b`)
	ibanRegex     = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{1,30}\b`)
	dobRegex      = regexp.MustCompile(`\b\d{2}[-/]\d{2}[-/]\d{2,4}\b`)
	postcodeRegex = regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d[A-Z\d]? ?\d[ABD-HJLNP-UW-Z]{2}\b`)
	addressRegex  = regexp.MustCompile(`(?i)\b\d+\s+[A-Z][A-Za-z]+(?:\s+(Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Lane|Ln))\b`)
)

var sensitivePatterns = []struct {
	label    string
	patterns []*regexp.Regexp
}{
	{"ni", []*regexp.Regexp{niRegex}},
	{"pps", []*regexp.Regexp{ppsRegex}},
	{"iban", []*regexp.Regexp{ibanRegex}},
	{"dob", []*regexp.Regexp{dobRegex}},
	{"address", []*regexp.Regexp{postcodeRegex, addressRegex}},
}

// Box is a redaction bounding box on a 0-100 percent scale.
type Box struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Label string  `json:"label"`
}

// Result of one redaction pass.
type Result struct {
	RedactedText string
	Boxes        []Box
	PreviewPNG   []byte
}

// PreviewRenderer turns redacted text into a preview image. Rendering is an
// external capability; NoopRenderer is the degraded default.
type PreviewRenderer interface {
	RenderPreview(ctx context.Context, redactedText string) ([]byte, error)
}

type NoopRenderer struct{}

func (NoopRenderer) RenderPreview(context.Context, string) ([]byte, error) { return nil, nil }

// Redact masks every sensitive match with a block rune of equal length and
// emits one box per hit. Box coordinates start on a 0-1 scale and are
// normalized to percent.
func Redact(ctx context.Context, rawText string, renderer PreviewRenderer) (Result, error) {
	if renderer == nil {
		renderer = NoopRenderer{}
	}
	redacted := rawText
	var boxes []Box
	hits := 0
	for _, group := range sensitivePatterns {
		for _, pattern := range group.patterns {
			for _, token := range pattern.FindAllString(rawText, -1) {
				redacted = strings.ReplaceAll(redacted, token, strings.Repeat("█", len(token)))
				y := 0.05 + 0.08*float64(hits)
				if y > 0.9 {
					y = 0.9
				}
				boxes = append(boxes, NormalizeBox(Box{X: 0.05, Y: y, W: 0.9, H: 0.06, Label: group.label}))
				hits++
			}
		}
	}
	preview, err := renderer.RenderPreview(ctx, redacted)
	if err != nil {
		// Text redaction already succeeded; hand it back so callers can
		// degrade to a preview-less pipeline.
		return Result{RedactedText: redacted, Boxes: boxes}, err
	}
	return Result{RedactedText: redacted, Boxes: boxes, PreviewPNG: preview}, nil
}

// NormalizeBox converts a box on a 0-1 or already-percent scale to a clamped
// 0-100 percent scale.
func NormalizeBox(b Box) Box {
	if b.X <= 1 && b.Y <= 1 && b.W <= 1 && b.H <= 1 {
		b.X *= 100
		b.Y *= 100
		b.W *= 100
		b.H *= 100
	}
	b.X = clampPercent(b.X)
	b.Y = clampPercent(b.Y)
	b.W = clampPercent(b.W)
	b.H = clampPercent(b.H)
	return b
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
