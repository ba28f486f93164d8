package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema kept portable between postgres and sqlite: text primary keys,
// RFC3339 text timestamps, JSON as text.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS files (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        storage_path TEXT NOT NULL,
        created_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS jobs (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        file_id TEXT,
        kind TEXT NOT NULL,
        status TEXT NOT NULL,
        error TEXT,
        meta TEXT,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS payslips (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        file_id TEXT NOT NULL,
        employer_name TEXT,
        pay_date TEXT,
        period_start TEXT,
        period_end TEXT,
        period_type TEXT,
        country TEXT,
        currency TEXT,
        gross DOUBLE PRECISION,
        net DOUBLE PRECISION,
        tax_income DOUBLE PRECISION,
        ni_prsi DOUBLE PRECISION,
        pension_employee DOUBLE PRECISION,
        pension_employer DOUBLE PRECISION,
        student_loan DOUBLE PRECISION,
        other_deductions DOUBLE PRECISION NOT NULL DEFAULT 0,
        ytd TEXT,
        tax_code TEXT,
        confidence_overall DOUBLE PRECISION NOT NULL DEFAULT 0,
        review_required BOOLEAN NOT NULL DEFAULT FALSE,
        conflict BOOLEAN NOT NULL DEFAULT FALSE,
        explainer_text TEXT,
        created_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS anomalies (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        payslip_id TEXT NOT NULL,
        type TEXT NOT NULL,
        severity TEXT NOT NULL,
        message TEXT NOT NULL,
        created_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS events (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        type TEXT NOT NULL,
        payload TEXT,
        created_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS llm_usage (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        file_id TEXT,
        model TEXT NOT NULL,
        tokens_input INTEGER NOT NULL DEFAULT 0,
        tokens_output INTEGER NOT NULL DEFAULT 0,
        cost DOUBLE PRECISION NOT NULL DEFAULT 0,
        created_at TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payslips_user ON payslips (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_usage_user ON llm_usage (user_id, created_at)`,
}

// Migrate creates missing tables and indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
