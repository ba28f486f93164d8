package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
	"github.com/rory-hayes/payslip-buddy-ai/internal/merge"
	"github.com/rory-hayes/payslip-buddy-ai/internal/ocr"
	"github.com/rory-hayes/payslip-buddy-ai/internal/redact"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
	"github.com/rory-hayes/payslip-buddy-ai/internal/validation"
)

// ExtractExecutor runs one extract job end to end: fetch, scan, text layer,
// OCR fallback, redaction, vision-LLM, merge, validation, persistence, and
// the follow-up anomaly dispatch. LLM failure degrades to the native-only
// path; it never fails the job.
type ExtractExecutor struct {
	Store      Store
	Source     DocumentSource
	Scanner    Scanner
	Text       extract.TextExtractor
	OCR        extract.OCRExtractor
	Vision     llm.VisionExtractor // nil disables the LLM stage
	Renderer   redact.PreviewRenderer
	Dispatcher Dispatcher
	OCROpts    extract.OCROptions
	Logger     *slog.Logger
}

func (e *ExtractExecutor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run executes the job identified by jobID. A job already claimed or in a
// terminal status is a no-op, which makes redelivery idempotent. Business
// failures mark the job failed and return nil; only infrastructure errors
// propagate.
func (e *ExtractExecutor) Run(ctx context.Context, jobID string) error {
	log := e.logger().With("job_id", jobID, "kind", constants.JobExtract)

	job, err := e.Store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("extract.job.missing")
			return nil
		}
		return err
	}
	claimed, err := e.Store.ClaimJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("extract.job.skipped", "status", job.Status)
		return nil
	}
	log.Info("extract.start", "file_id", job.FileID, "user_id", job.UserID)

	file, err := e.Store.GetFile(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return e.Store.FailJob(ctx, jobID, "File not found")
		}
		return err
	}

	password, _ := job.Meta["pdfPassword"].(string)
	data, err := e.Source.Fetch(ctx, file.StoragePath)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return e.Store.FailJob(ctx, jobID, "Document not found in storage")
		}
		return err
	}
	if password != "" {
		data = ocr.Decrypt(ctx, data, password, log)
	}

	if e.Scanner != nil {
		if err := e.Scanner.Scan(ctx, data); err != nil {
			if errors.Is(err, common.ErrMalicious) {
				log.Warn("extract.scan.rejected", "file_id", file.ID)
				return e.Store.FailJob(ctx, jobID, "File rejected by malware scan")
			}
			return err
		}
	}

	text, err := e.Text.Extract(ctx, data)
	if err != nil {
		log.Error("extract.text.failed", "error", err)
		return e.Store.FailJob(ctx, jobID, "Text extraction failed")
	}
	native := extract.FromText(text.Raw)

	usedOCR := false
	combined := text.Raw
	if extract.NeedsOCR(native, text.Raw) && e.OCR != nil {
		ocrText, ocrErr := e.OCR.ExtractOCR(ctx, data, e.OCROpts)
		if ocrErr != nil {
			log.Warn("extract.ocr.failed", "error", ocrErr)
		} else if ocrText != "" {
			native = extract.Augment(native, extract.FromText(ocrText))
			combined = extract.CombineTexts(text.Raw, ocrText)
			usedOCR = true
		}
	}

	renderer := e.Renderer
	if renderer == nil {
		renderer = redact.NoopRenderer{}
	}
	red, err := redact.Redact(ctx, combined, renderer)
	if err != nil {
		log.Warn("extract.redact.preview_failed", "error", err)
	}

	var payload *llm.Extraction
	if e.Vision != nil {
		req := llm.ExtractRequest{UserID: job.UserID, FileID: file.ID}
		if len(red.PreviewPNG) > 0 {
			req.Images = [][]byte{red.PreviewPNG}
		}
		got, _, llmErr := e.Vision.ExtractPayslip(ctx, req)
		switch {
		case llmErr == nil:
			payload = got
		case errors.Is(llmErr, llm.ErrSpendCapExceeded):
			log.Warn("extract.llm.capped", "user_id", job.UserID)
		default:
			log.Warn("extract.llm.degraded", "error", llmErr)
		}
	}
	llmPresent := payload != nil

	rec := merge.Merge(native, payload)
	rec.PayDate = merge.NormalizeDate(rec.PayDate)
	rec.PeriodStart = merge.NormalizeDate(rec.PeriodStart)
	rec.PeriodEnd = merge.NormalizeDate(rec.PeriodEnd)
	rec.PeriodType = merge.InferPeriodType(rec.PeriodStart, rec.PeriodEnd)

	previousYTD := e.previousYTD(ctx, job.UserID, log)
	outcomes := validation.Validate(rec, previousYTD)
	if !llmPresent {
		rec.ConfidenceOverall = validation.CalculateConfidence(native, outcomes, usedOCR)
	}
	review := validation.ReviewRequired(outcomes, rec.ConfidenceOverall)

	payslipID, err := e.Store.InsertPayslip(ctx, &repository.Payslip{
		UserID:         job.UserID,
		FileID:         file.ID,
		Record:         rec,
		ReviewRequired: review,
	})
	if err != nil {
		return err
	}

	if err := e.Store.AppendEvent(ctx, job.UserID, "extract_complete", map[string]any{
		"payslip_id":      payslipID,
		"file_id":         file.ID,
		"confidence":      rec.ConfidenceOverall,
		"review_required": review,
		"used_ocr":        usedOCR,
		"llm_used":        llmPresent,
	}); err != nil {
		log.Warn("extract.event.failed", "error", err)
	}

	status := constants.JobDone
	if review {
		status = constants.JobNeedsReview
	}
	meta := map[string]any{
		"payslip_id":        payslipID,
		"confidence":        rec.ConfidenceOverall,
		"review_required":   review,
		"used_ocr":          usedOCR,
		"llm_used":          llmPresent,
		"identity_ok":       outcomes.Identity,
		"ytd_monotonic_ok":  outcomes.YTD,
		"dates_ok":          outcomes.Dates,
		"tax_code_ok":       outcomes.Tax,
		"redaction_matches": len(red.Boxes),
	}
	if err := e.Store.FinishJob(ctx, jobID, status, meta); err != nil {
		return err
	}

	if e.Dispatcher != nil {
		if _, err := e.Dispatcher.Dispatch(ctx, job.UserID, file.ID, constants.JobDetectAnomalies, nil); err != nil {
			log.Warn("extract.dispatch.failed", "error", err)
		}
	}
	log.Info("extract.done", "payslip_id", payslipID, "status", status,
		"confidence", rec.ConfidenceOverall, "review_required", review)
	return nil
}

// previousYTD loads the most recent prior payslip's YTD mapping for the
// monotonicity check; no history means no constraint.
func (e *ExtractExecutor) previousYTD(ctx context.Context, userID string, log *slog.Logger) map[string]any {
	prior, err := e.Store.PayslipHistory(ctx, userID, "", 1)
	if err != nil {
		log.Warn("extract.history.failed", "error", err)
		return nil
	}
	if len(prior) == 0 {
		return nil
	}
	return prior[0].Record.YTD
}
