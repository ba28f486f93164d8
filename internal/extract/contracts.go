package extract

import "context"

// Text is the outcome of primary text extraction over document bytes.
type Text struct {
	Raw     string
	HasText bool
}

// TextExtractor is Stage 1: decrypted document bytes -> text.
// Implementations must degrade to empty text instead of failing on
// unparseable content.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (Text, error)
}

// OCROptions bound the expensive OCR pass.
type OCROptions struct {
	MaxPages int
	Language string
	DPI      int
}

// OCRExtractor is the fallback path for scanned documents: bytes -> text.
// Empty text signals total failure; implementations log, never raise.
type OCRExtractor interface {
	ExtractOCR(ctx context.Context, data []byte, opts OCROptions) (string, error)
}

// NoopOCR is the degraded default when no OCR engine is configured.
type NoopOCR struct{}

func (NoopOCR) ExtractOCR(context.Context, []byte, OCROptions) (string, error) {
	return "", nil
}
