package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// MeteredExtractor enforces the daily spend cap around an inner provider and
// records usage for every successful call.
type MeteredExtractor struct {
	inner  VisionExtractor
	meter  UsageMeter
	model  string
	capUSD float64
	logger *slog.Logger
}

func NewMeteredExtractor(inner VisionExtractor, meter UsageMeter, model string, capUSD float64, logger *slog.Logger) *MeteredExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeteredExtractor{inner: inner, meter: meter, model: model, capUSD: capUSD, logger: logger}
}

func (m *MeteredExtractor) ExtractPayslip(ctx context.Context, req ExtractRequest) (*Extraction, Usage, error) {
	spend, err := m.meter.TodaysSpendUSD(ctx, req.UserID)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("spend lookup: %w", err)
	}
	m.logger.Info("llm.spend.check", "user_id", req.UserID, "spend_usd", spend, "cap_usd", m.capUSD)
	if spend >= m.capUSD {
		return nil, Usage{}, ErrSpendCapExceeded
	}

	payload, usage, err := m.inner.ExtractPayslip(ctx, req)
	if err != nil {
		return nil, usage, err
	}
	if rerr := m.meter.RecordUsage(ctx, req.UserID, req.FileID, m.model, usage); rerr != nil {
		m.logger.Warn("llm.usage.record_failed", "user_id", req.UserID, "error", rerr)
	}
	return payload, usage, nil
}
