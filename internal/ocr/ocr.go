// Package ocr is the fallback text extractor for scanned payslips. It shells
// out to pdftoppm and tesseract; total failure degrades to empty text, it is
// logged, never raised to the job.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language string // default "eng"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = no limit

	PSM int // page segmentation mode; 6 suits uniform text blocks
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// ExtractOCR implements extract.OCRExtractor: rasterize the document, then
// OCR each page. Options override the configured language and page limit
// when set.
func (e *Extractor) ExtractOCR(ctx context.Context, data []byte, opts extract.OCROptions) (string, error) {
	tmpDir, err := os.MkdirTemp("", "payslip-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("ocr temp cleanup failed", "dir", tmpDir, "error", rerr)
		}
	}()

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	dpi := e.cfg.DPI
	if opts.DPI > 0 {
		dpi = opts.DPI
	}
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", dpi), "-png", pdfPath, prefix); err != nil {
		e.logger.Error("ocr rasterize failed", "error", err, "stderr", string(errb))
		return "", nil
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	maxPages := e.cfg.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	if maxPages > 0 && len(matches) > maxPages {
		matches = matches[:maxPages]
	}
	if len(matches) == 0 {
		e.logger.Warn("ocr produced no page images")
		return "", nil
	}

	lang := e.cfg.Language
	if opts.Language != "" {
		lang = opts.Language
	}

	var b strings.Builder
	pagesOK := 0
	for _, img := range matches {
		txt, err := e.tesseract(ctx, img, lang)
		if err != nil {
			e.logger.Warn("ocr page failed", "image", filepath.Base(img), "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
		pagesOK++
	}
	e.logger.Info("ocr.done", "pages", len(matches), "pages_ok", pagesOK, "bytes", b.Len())
	return b.String(), nil
}

func (e *Extractor) tesseract(ctx context.Context, imagePath, lang string) (string, error) {
	args := []string{imagePath, "stdout", "-l", lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", strings.TrimSpace(string(errb)), err)
	}
	return string(out), nil
}
