package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out to the PDF tooling (pdftotext, pdftoppm, tesseract,
// qpdf). All of these are short-lived batch commands, so output is buffered
// whole rather than streamed.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errb

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		slog.Debug("ocr.exec.ok", "cmd", name, "elapsed_ms", elapsed, "stdout_bytes", out.Len())
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(ctx.Err(), context.DeadlineExceeded):
		slog.Warn("ocr.exec.interrupted", "cmd", name, "elapsed_ms", elapsed, "cause", ctx.Err())
	default:
		slog.Error("ocr.exec.failed", "cmd", name, "elapsed_ms", elapsed,
			"error", err, "stderr", stderrTail(errb.Bytes()))
	}
	return out.Bytes(), errb.Bytes(), err
}

// stderrTail keeps the end of the tool output, which is where pdftoppm and
// tesseract put the actionable message.
func stderrTail(b []byte) string {
	const max = 2 << 10
	if len(b) <= max {
		return string(b)
	}
	return "...(" + string(b[len(b)-max:]) + ")"
}
