package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
)

// Job is one queued unit of work.
type Job struct {
	ID        string
	UserID    string
	FileID    string
	Kind      constants.JobKind
	Status    constants.JobStatus
	Error     string
	Meta      map[string]any
	CreatedAt string
	UpdatedAt string
}

const jobColumns = `id, user_id, COALESCE(file_id, ''), kind, status, COALESCE(error, ''), COALESCE(meta, '{}'), created_at, updated_at`

// GetJob loads a single job row; common.ErrNotFound when absent.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// EnqueueJob inserts a queued job and returns its id.
func (s *Store) EnqueueJob(ctx context.Context, userID, fileID string, kind constants.JobKind, meta map[string]any) (string, error) {
	id := uuid.New().String()
	metaJSON, err := json.Marshal(orEmptyMeta(meta))
	if err != nil {
		return "", fmt.Errorf("encode job meta: %w", err)
	}
	ts := now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, file_id, kind, status, meta, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, userID, nullable(fileID), string(kind), string(constants.JobQueued), string(metaJSON), ts, ts)
	if err != nil {
		s.log.Error("job enqueue failed", "kind", kind, "error", err)
		return "", err
	}
	s.log.Info("job enqueued", "job_id", id, "kind", kind, "user_id", userID)
	return id, nil
}

// ClaimJob transitions a job from queued to running. The conditional update
// is the idempotency gate: a claim that affects zero rows means the job is
// already running, terminal, or unknown, and must be skipped.
func (s *Store) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2
         WHERE id = $3 AND status = $4`,
		string(constants.JobRunning), now(), jobID,
		string(constants.JobQueued))
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FinishJob moves a job to a terminal status with optional result meta.
func (s *Store) FinishJob(ctx context.Context, jobID string, status constants.JobStatus, meta map[string]any) error {
	metaJSON, err := json.Marshal(orEmptyMeta(meta))
	if err != nil {
		return fmt.Errorf("encode job meta: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, meta = $2, updated_at = $3 WHERE id = $4`,
		string(status), string(metaJSON), now(), jobID)
	if err != nil {
		s.log.Error("job finish failed", "job_id", jobID, "status", status, "error", err)
		return err
	}
	s.log.Info("job finished", "job_id", jobID, "status", status)
	return nil
}

// FailJob marks a job failed with an error message.
func (s *Store) FailJob(ctx context.Context, jobID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(constants.JobFailed), message, now(), jobID)
	if err != nil {
		s.log.Error("job fail-update failed", "job_id", jobID, "error", err)
		return err
	}
	s.log.Warn("job failed", "job_id", jobID, "error", message)
	return nil
}

// NextQueuedJobs returns up to limit queued jobs, oldest first.
func (s *Store) NextQueuedJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(constants.JobQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var kind, status, metaJSON string
	err := row.Scan(&j.ID, &j.UserID, &j.FileID, &kind, &status, &j.Error, &metaJSON, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.Kind = constants.JobKind(kind)
	j.Status = constants.JobStatus(status)
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &j.Meta); err != nil {
			return nil, fmt.Errorf("decode job meta: %w", err)
		}
	}
	return &j, nil
}

func orEmptyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
