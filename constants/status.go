package constants

// JobKind identifies an independently queued unit of work.
type JobKind string

// Stable values (store these exact strings in DB).
const (
	JobExtract         JobKind = "extract"
	JobDetectAnomalies JobKind = "detect_anomalies"
	JobHRPack          JobKind = "hr_pack"
	JobDossier         JobKind = "dossier"
	JobDeleteAll       JobKind = "delete_all"
	JobExportAll       JobKind = "export_all"
)

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"       // waiting for a worker
	JobRunning     JobStatus = "running"      // in progress
	JobNeedsReview JobStatus = "needs_review" // terminal, record needs human verification
	JobDone        JobStatus = "done"         // terminal success
	JobFailed      JobStatus = "failed"       // terminal failure
)

// IsTerminal reports whether a job in this status must never be picked up again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobNeedsReview, JobDone, JobFailed:
		return true
	}
	return false
}
