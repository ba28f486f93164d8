package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
)

// Exporter renders persisted payslips into downloadable workbooks.
type Exporter interface {
	PayslipsXLSX(ctx context.Context, payslips []repository.Payslip) ([]byte, error)
	DossierXLSX(ctx context.Context, d *repository.Dossier) ([]byte, error)
}

// HousekeepingExecutor runs the account-scoped jobs: dossier, export_all,
// delete_all and hr_pack. One executor covers all four; the worker routes by
// job kind.
type HousekeepingExecutor struct {
	Store    Store
	Exporter Exporter
	Sink     ArtifactSink
	Logger   *slog.Logger
}

func (e *HousekeepingExecutor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *HousekeepingExecutor) Run(ctx context.Context, jobID string) error {
	log := e.logger().With("job_id", jobID)

	job, err := e.Store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("housekeeping.job.missing")
			return nil
		}
		return err
	}
	claimed, err := e.Store.ClaimJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("housekeeping.job.skipped", "kind", job.Kind, "status", job.Status)
		return nil
	}

	switch job.Kind {
	case constants.JobDossier:
		return e.dossier(ctx, job, log)
	case constants.JobExportAll:
		return e.exportAll(ctx, job, log)
	case constants.JobDeleteAll:
		return e.deleteAll(ctx, job, log)
	case constants.JobHRPack:
		return e.hrPack(ctx, job, log)
	default:
		return e.Store.FailJob(ctx, jobID, fmt.Sprintf("Unsupported job kind %q", job.Kind))
	}
}

// dossier rolls up lifetime and per-month figures over trusted payslips and
// attaches an XLSX rendition when a sink is configured.
func (e *HousekeepingExecutor) dossier(ctx context.Context, job *repository.Job, log *slog.Logger) error {
	d, err := e.Store.BuildDossier(ctx, job.UserID)
	if err != nil {
		return err
	}
	meta := map[string]any{
		"months":      len(d.Months),
		"total_gross": d.Totals.Gross,
		"total_net":   d.Totals.Net,
	}
	if e.Exporter != nil && e.Sink != nil {
		data, err := e.Exporter.DossierXLSX(ctx, d)
		if err != nil {
			return e.Store.FailJob(ctx, job.ID, "Dossier rendering failed")
		}
		path, err := e.Sink.Put(ctx, job.UserID, artifactName("dossier"), xlsxContentType, data)
		if err != nil {
			return e.Store.FailJob(ctx, job.ID, "Dossier upload failed")
		}
		meta["artifact_path"] = path
	}
	log.Info("dossier.done", "user_id", job.UserID, "months", len(d.Months))
	return e.Store.FinishJob(ctx, job.ID, constants.JobDone, meta)
}

// exportAll writes every payslip for the user into one workbook and stores
// it as a download artifact.
func (e *HousekeepingExecutor) exportAll(ctx context.Context, job *repository.Job, log *slog.Logger) error {
	payslips, err := e.Store.ListPayslips(ctx, job.UserID)
	if err != nil {
		return err
	}
	if e.Exporter == nil || e.Sink == nil {
		return e.Store.FailJob(ctx, job.ID, "Export is not configured")
	}
	data, err := e.Exporter.PayslipsXLSX(ctx, payslips)
	if err != nil {
		return e.Store.FailJob(ctx, job.ID, "Export rendering failed")
	}
	path, err := e.Sink.Put(ctx, job.UserID, artifactName("payslips"), xlsxContentType, data)
	if err != nil {
		return e.Store.FailJob(ctx, job.ID, "Export upload failed")
	}
	if err := e.Store.AppendEvent(ctx, job.UserID, "export_ready", map[string]any{
		"artifact_path": path,
		"rows":          len(payslips),
	}); err != nil {
		log.Warn("export.event.failed", "error", err)
	}
	log.Info("export.done", "user_id", job.UserID, "rows", len(payslips))
	return e.Store.FinishJob(ctx, job.ID, constants.JobDone, map[string]any{
		"artifact_path": path,
		"rows":          len(payslips),
	})
}

// deleteAll erases every row and stored document for the user. Storage
// deletion is best effort; row deletion is not.
func (e *HousekeepingExecutor) deleteAll(ctx context.Context, job *repository.Job, log *slog.Logger) error {
	paths, err := e.Store.ListFilePaths(ctx, job.UserID)
	if err != nil {
		return err
	}

	payslips, err := e.Store.DeletePayslips(ctx, job.UserID)
	if err != nil {
		return err
	}
	anomalies, err := e.Store.DeleteAnomalies(ctx, job.UserID)
	if err != nil {
		return err
	}
	events, err := e.Store.DeleteEvents(ctx, job.UserID)
	if err != nil {
		return err
	}
	usage, err := e.Store.DeleteUsage(ctx, job.UserID)
	if err != nil {
		return err
	}
	files, err := e.Store.DeleteFiles(ctx, job.UserID)
	if err != nil {
		return err
	}

	if e.Sink != nil && len(paths) > 0 {
		if err := e.Sink.Delete(ctx, paths); err != nil {
			log.Warn("delete_all.storage.failed", "user_id", job.UserID, "paths", len(paths), "error", err)
		}
	}

	log.Info("delete_all.done", "user_id", job.UserID,
		"payslips", payslips, "anomalies", anomalies, "events", events, "files", files)
	return e.Store.FinishJob(ctx, job.ID, constants.JobDone, map[string]any{
		"payslips_deleted":  payslips,
		"anomalies_deleted": anomalies,
		"events_deleted":    events,
		"usage_deleted":     usage,
		"files_deleted":     files,
	})
}

// hrPack bundles recent payslips for sharing with an HR department. The
// workbook reuses the export rendition over the bounded recent window.
func (e *HousekeepingExecutor) hrPack(ctx context.Context, job *repository.Job, log *slog.Logger) error {
	recent, err := e.Store.PayslipHistory(ctx, job.UserID, "", constants.HistoryWindow)
	if err != nil {
		return err
	}
	meta := map[string]any{"payslips": len(recent)}
	if e.Exporter != nil && e.Sink != nil && len(recent) > 0 {
		data, err := e.Exporter.PayslipsXLSX(ctx, recent)
		if err != nil {
			return e.Store.FailJob(ctx, job.ID, "HR pack rendering failed")
		}
		path, err := e.Sink.Put(ctx, job.UserID, artifactName("hr-pack"), xlsxContentType, data)
		if err != nil {
			return e.Store.FailJob(ctx, job.ID, "HR pack upload failed")
		}
		meta["artifact_path"] = path
	}
	log.Info("hr_pack.done", "user_id", job.UserID, "payslips", len(recent))
	return e.Store.FinishJob(ctx, job.ID, constants.JobDone, meta)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func artifactName(prefix string) string {
	return fmt.Sprintf("%s-%s.xlsx", prefix, time.Now().UTC().Format("20060102-150405"))
}
