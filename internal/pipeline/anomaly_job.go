package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/anomaly"
	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
)

// AnomalyExecutor runs one detect_anomalies job: load the payslip for the
// job's file, rebuild snapshots for it and its bounded history, run the
// detectors and persist the findings.
type AnomalyExecutor struct {
	Store  Store
	Logger *slog.Logger
}

func (e *AnomalyExecutor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *AnomalyExecutor) Run(ctx context.Context, jobID string) error {
	log := e.logger().With("job_id", jobID, "kind", constants.JobDetectAnomalies)

	job, err := e.Store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("anomaly.job.missing")
			return nil
		}
		return err
	}
	claimed, err := e.Store.ClaimJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("anomaly.job.skipped", "status", job.Status)
		return nil
	}

	payslip, err := e.Store.GetPayslipByFile(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return e.Store.FailJob(ctx, jobID, "Payslip missing for anomaly detection")
		}
		return err
	}

	prior, err := e.Store.PayslipHistory(ctx, job.UserID, payslip.CreatedAt, constants.HistoryWindow)
	if err != nil {
		return err
	}
	history := make([]anomaly.Snapshot, 0, len(prior))
	for i := range prior {
		history = append(history, snapshotOf(&prior[i]))
	}

	findings := anomaly.Detect(snapshotOf(payslip), history)
	for _, a := range findings {
		if err := e.Store.InsertAnomaly(ctx, job.UserID, payslip.ID, a); err != nil {
			return err
		}
	}

	if err := e.Store.AppendEvent(ctx, job.UserID, "anomalies_detected", map[string]any{
		"payslip_id": payslip.ID,
		"anomalies":  len(findings),
	}); err != nil {
		log.Warn("anomaly.event.failed", "error", err)
	}

	log.Info("anomaly.done", "payslip_id", payslip.ID, "history", len(history), "findings", len(findings))
	return e.Store.FinishJob(ctx, jobID, constants.JobDone, map[string]any{
		"payslip_id": payslip.ID,
		"anomalies":  len(findings),
	})
}

// snapshotOf projects a persisted payslip into the detector input. YTD
// entries that are not numeric are dropped; the aggregate other_deductions
// figure is carried as a single labelled deduction.
func snapshotOf(p *repository.Payslip) anomaly.Snapshot {
	rec := p.Record
	snap := anomaly.Snapshot{
		PayslipID:    p.ID,
		EmployerName: rec.EmployerName,
		TaxCode:      rec.TaxCode,
		YTD:          map[string]float64{},
		Deductions:   map[string]float64{},
	}
	if rec.Net != nil {
		snap.Net = *rec.Net
	}
	if rec.PensionEmployee != nil {
		snap.PensionEmployee = *rec.PensionEmployee
	}
	for k, v := range rec.YTD {
		switch n := v.(type) {
		case float64:
			snap.YTD[k] = n
		case int:
			snap.YTD[k] = float64(n)
		}
	}
	if rec.OtherDeductions > 0 {
		snap.Deductions["other"] = rec.OtherDeductions
	}
	if rec.PayDate != "" {
		if t, err := time.Parse("2006-01-02", rec.PayDate); err == nil {
			snap.PayDate = t
		}
	}
	return snap
}
