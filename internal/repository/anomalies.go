package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rory-hayes/payslip-buddy-ai/internal/anomaly"
)

// InsertAnomaly persists one detector finding against a payslip.
func (s *Store) InsertAnomaly(ctx context.Context, userID, payslipID string, a anomaly.Anomaly) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO anomalies (id, user_id, payslip_id, type, severity, message, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), userID, payslipID, string(a.Type), string(a.Severity), a.Message, now())
	if err != nil {
		s.log.Error("anomaly insert failed", "payslip_id", payslipID, "type", a.Type, "error", err)
		return err
	}
	return nil
}

// ListAnomalies returns findings for a payslip in insertion order.
func (s *Store) ListAnomalies(ctx context.Context, payslipID string) ([]anomaly.Anomaly, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, severity, message FROM anomalies WHERE payslip_id = $1 ORDER BY created_at ASC`,
		payslipID)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()
	var out []anomaly.Anomaly
	for rows.Next() {
		var a anomaly.Anomaly
		if err := rows.Scan(&a.Type, &a.Severity, &a.Message); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAnomalies removes all findings for the user.
func (s *Store) DeleteAnomalies(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM anomalies WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete anomalies: %w", err)
	}
	return res.RowsAffected()
}
