package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
)

// TodaysSpendUSD sums the user's inference cost since UTC midnight.
// Implements llm.UsageMeter.
func (s *Store) TodaysSpendUSD(ctx context.Context, userID string) (float64, error) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339Nano)
	var spend float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM llm_usage WHERE user_id = $1 AND created_at >= $2`,
		userID, midnight).Scan(&spend)
	if err != nil {
		return 0, fmt.Errorf("sum llm spend: %w", err)
	}
	return spend, nil
}

// RecordUsage appends one inference cost row. Implements llm.UsageMeter.
func (s *Store) RecordUsage(ctx context.Context, userID, fileID, model string, usage llm.Usage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_usage (id, user_id, file_id, model, tokens_input, tokens_output, cost, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), userID, nullable(fileID), model,
		usage.TokensInput, usage.TokensOutput, usage.CostUSD, now())
	if err != nil {
		s.log.Error("llm usage record failed", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// DeleteUsage removes all llm usage rows for the user.
func (s *Store) DeleteUsage(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM llm_usage WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete llm usage: %w", err)
	}
	return res.RowsAffected()
}
