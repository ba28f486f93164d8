package pipeline

import (
	"context"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/anomaly"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
)

// Store is the slice of the row store the job executors depend on.
// *repository.Store satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*repository.Job, error)
	ClaimJob(ctx context.Context, jobID string) (bool, error)
	FinishJob(ctx context.Context, jobID string, status constants.JobStatus, meta map[string]any) error
	FailJob(ctx context.Context, jobID, message string) error
	EnqueueJob(ctx context.Context, userID, fileID string, kind constants.JobKind, meta map[string]any) (string, error)
	NextQueuedJobs(ctx context.Context, limit int) ([]repository.Job, error)

	GetFile(ctx context.Context, fileID string) (*repository.File, error)
	ListFilePaths(ctx context.Context, userID string) ([]string, error)
	DeleteFiles(ctx context.Context, userID string) (int64, error)

	InsertPayslip(ctx context.Context, p *repository.Payslip) (string, error)
	GetPayslipByFile(ctx context.Context, fileID string) (*repository.Payslip, error)
	PayslipHistory(ctx context.Context, userID, beforeCreatedAt string, limit int) ([]repository.Payslip, error)
	ListPayslips(ctx context.Context, userID string) ([]repository.Payslip, error)
	DeletePayslips(ctx context.Context, userID string) (int64, error)

	InsertAnomaly(ctx context.Context, userID, payslipID string, a anomaly.Anomaly) error
	DeleteAnomalies(ctx context.Context, userID string) (int64, error)

	AppendEvent(ctx context.Context, userID, eventType string, payload map[string]any) error
	DeleteEvents(ctx context.Context, userID string) (int64, error)
	DeleteUsage(ctx context.Context, userID string) (int64, error)

	BuildDossier(ctx context.Context, userID string) (*repository.Dossier, error)
}
