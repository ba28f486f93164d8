package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
	"github.com/rory-hayes/payslip-buddy-ai/internal/merge"
)

// Payslip is the persisted form of a merged record.
type Payslip struct {
	ID             string
	UserID         string
	FileID         string
	Record         merge.Record
	ReviewRequired bool
	Conflict       bool
	ExplainerText  string
	CreatedAt      string
}

// InsertPayslip persists one merged record.
func (s *Store) InsertPayslip(ctx context.Context, p *Payslip) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now()
	}
	ytdJSON, err := json.Marshal(p.Record.YTD)
	if err != nil {
		return "", fmt.Errorf("encode ytd: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payslips (
            id, user_id, file_id, employer_name, pay_date, period_start, period_end,
            period_type, country, currency, gross, net, tax_income, ni_prsi,
            pension_employee, pension_employer, student_loan, other_deductions,
            ytd, tax_code, confidence_overall, review_required, conflict,
            explainer_text, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
		p.ID, p.UserID, p.FileID,
		nullable(p.Record.EmployerName), nullable(p.Record.PayDate),
		nullable(p.Record.PeriodStart), nullable(p.Record.PeriodEnd),
		nullable(p.Record.PeriodType), nullable(p.Record.Country), nullable(p.Record.Currency),
		p.Record.Gross, p.Record.Net, p.Record.TaxIncome, p.Record.NiPrsi,
		p.Record.PensionEmployee, p.Record.PensionEmployer, p.Record.StudentLoan,
		p.Record.OtherDeductions, string(ytdJSON), nullable(p.Record.TaxCode),
		p.Record.ConfidenceOverall, p.ReviewRequired, p.Conflict,
		nullable(p.ExplainerText), p.CreatedAt)
	if err != nil {
		s.log.Error("payslip insert failed", "file_id", p.FileID, "error", err)
		return "", err
	}
	s.log.Info("payslip persisted", "payslip_id", p.ID, "file_id", p.FileID,
		"review_required", p.ReviewRequired, "confidence", p.Record.ConfidenceOverall)
	return p.ID, nil
}

const payslipColumns = `id, user_id, file_id, COALESCE(employer_name,''), COALESCE(pay_date,''),
    COALESCE(period_start,''), COALESCE(period_end,''), COALESCE(period_type,''),
    COALESCE(country,''), COALESCE(currency,''), gross, net, tax_income, ni_prsi,
    pension_employee, pension_employer, student_loan, other_deductions,
    COALESCE(ytd,'{}'), COALESCE(tax_code,''), confidence_overall, review_required,
    conflict, COALESCE(explainer_text,''), created_at`

// GetPayslipByFile loads the payslip persisted for a file, if any.
func (s *Store) GetPayslipByFile(ctx context.Context, fileID string) (*Payslip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+payslipColumns+` FROM payslips WHERE file_id = $1`, fileID)
	return scanPayslip(row)
}

// PayslipHistory returns up to limit payslips for the user persisted before
// the given timestamp, most recent first. An empty cursor means "now".
func (s *Store) PayslipHistory(ctx context.Context, userID, beforeCreatedAt string, limit int) ([]Payslip, error) {
	if beforeCreatedAt == "" {
		beforeCreatedAt = now()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+payslipColumns+` FROM payslips
         WHERE user_id = $1 AND created_at < $2
         ORDER BY created_at DESC LIMIT $3`,
		userID, beforeCreatedAt, limit)
	if err != nil {
		return nil, fmt.Errorf("query payslip history: %w", err)
	}
	defer rows.Close()
	return collectPayslips(rows)
}

// ListPayslips returns every payslip for the user, oldest first.
func (s *Store) ListPayslips(ctx context.Context, userID string) ([]Payslip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+payslipColumns+` FROM payslips WHERE user_id = $1 ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list payslips: %w", err)
	}
	defer rows.Close()
	return collectPayslips(rows)
}

// DeletePayslips removes all payslips for the user and returns the count.
func (s *Store) DeletePayslips(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payslips WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete payslips: %w", err)
	}
	return res.RowsAffected()
}

func collectPayslips(rows *sql.Rows) ([]Payslip, error) {
	var out []Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayslip(row rowScanner) (*Payslip, error) {
	var p Payslip
	var gross, net, taxIncome, niPrsi, pensionEmp, pensionEmr, studentLoan sql.NullFloat64
	var ytdJSON string
	err := row.Scan(
		&p.ID, &p.UserID, &p.FileID,
		&p.Record.EmployerName, &p.Record.PayDate,
		&p.Record.PeriodStart, &p.Record.PeriodEnd, &p.Record.PeriodType,
		&p.Record.Country, &p.Record.Currency,
		&gross, &net, &taxIncome, &niPrsi, &pensionEmp, &pensionEmr, &studentLoan,
		&p.Record.OtherDeductions, &ytdJSON, &p.Record.TaxCode,
		&p.Record.ConfidenceOverall, &p.ReviewRequired, &p.Conflict,
		&p.ExplainerText, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payslip: %w", err)
	}
	p.Record.Gross = fromNull(gross)
	p.Record.Net = fromNull(net)
	p.Record.TaxIncome = fromNull(taxIncome)
	p.Record.NiPrsi = fromNull(niPrsi)
	p.Record.PensionEmployee = fromNull(pensionEmp)
	p.Record.PensionEmployer = fromNull(pensionEmr)
	p.Record.StudentLoan = fromNull(studentLoan)
	if ytdJSON != "" {
		if err := json.Unmarshal([]byte(ytdJSON), &p.Record.YTD); err != nil {
			return nil, fmt.Errorf("decode ytd: %w", err)
		}
	}
	return &p, nil
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
