package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AppendEvent records an audit event for the user.
func (s *Store) AppendEvent(ctx context.Context, userID, eventType string, payload map[string]any) error {
	payloadJSON, err := json.Marshal(orEmptyMeta(payload))
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, user_id, type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), userID, eventType, string(payloadJSON), now())
	if err != nil {
		s.log.Error("event append failed", "type", eventType, "error", err)
		return err
	}
	return nil
}

// DeleteEvents removes all events for the user.
func (s *Store) DeleteEvents(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return res.RowsAffected()
}
