package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
)

// TextLayer extracts the embedded text layer of a PDF via pdftotext. Scanned
// documents with no text layer yield empty text, not an error.
type TextLayer struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewTextLayer(bin string, logger *slog.Logger) *TextLayer {
	if bin == "" {
		bin = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextLayer{bin: bin, runner: execRunner{}, logger: logger}
}

// Extract implements extract.TextExtractor. Tool failure degrades to empty
// text so the OCR fallback can take over.
func (t *TextLayer) Extract(ctx context.Context, data []byte) (extract.Text, error) {
	tmpDir, err := os.MkdirTemp("", "payslip-text-*")
	if err != nil {
		return extract.Text{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return extract.Text{}, fmt.Errorf("write temp pdf: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.bin, "-layout", pdfPath, "-")
	if err != nil {
		t.logger.Warn("text layer extraction failed", "error", err, "stderr", stderrTail(errb))
		return extract.Text{}, nil
	}
	raw := string(out)
	return extract.Text{Raw: raw, HasText: strings.TrimSpace(raw) != ""}, nil
}

// Decrypt removes PDF encryption using qpdf when a password is supplied.
// When qpdf is unavailable or the password is wrong the original bytes are
// returned so downstream extraction can still try them.
func Decrypt(ctx context.Context, data []byte, password string, logger *slog.Logger) []byte {
	if password == "" {
		return data
	}
	if logger == nil {
		logger = slog.Default()
	}
	tmpDir, err := os.MkdirTemp("", "payslip-decrypt-*")
	if err != nil {
		logger.Warn("decrypt temp dir failed", "error", err)
		return data
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	out := filepath.Join(tmpDir, "out.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		logger.Warn("decrypt temp write failed", "error", err)
		return data
	}
	_, errb, err := execRunner{}.Run(ctx, "qpdf", "--password="+password, "--decrypt", in, out)
	if err != nil {
		logger.Warn("pdf decrypt failed", "error", err, "stderr", stderrTail(errb))
		return data
	}
	dec, err := os.ReadFile(out)
	if err != nil {
		logger.Warn("decrypt read failed", "error", err)
		return data
	}
	return dec
}
