package llm

import (
	"context"
	"errors"
	"testing"
)

type stubExtractor struct {
	payload *Extraction
	usage   Usage
	err     error
	calls   int
}

func (s *stubExtractor) ExtractPayslip(ctx context.Context, req ExtractRequest) (*Extraction, Usage, error) {
	s.calls++
	return s.payload, s.usage, s.err
}

type stubMeter struct {
	spend    float64
	spendErr error
	recorded []Usage
}

func (s *stubMeter) TodaysSpendUSD(ctx context.Context, userID string) (float64, error) {
	return s.spend, s.spendErr
}

func (s *stubMeter) RecordUsage(ctx context.Context, userID, fileID, model string, usage Usage) error {
	s.recorded = append(s.recorded, usage)
	return nil
}

func TestMeteredExtractorUnderCap(t *testing.T) {
	inner := &stubExtractor{payload: &Extraction{Country: "UK"}, usage: Usage{CostUSD: 0.02}}
	meter := &stubMeter{spend: 1.50}
	m := NewMeteredExtractor(inner, meter, "gpt-4o-mini", 10, nil)

	payload, usage, err := m.ExtractPayslip(context.Background(), ExtractRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("ExtractPayslip failed: %v", err)
	}
	if payload == nil || payload.Country != "UK" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if usage.CostUSD != 0.02 {
		t.Fatalf("usage = %+v", usage)
	}
	if len(meter.recorded) != 1 {
		t.Fatalf("usage recorded %d times, want 1", len(meter.recorded))
	}
}

func TestMeteredExtractorAtCap(t *testing.T) {
	inner := &stubExtractor{payload: &Extraction{}}
	meter := &stubMeter{spend: 10}
	m := NewMeteredExtractor(inner, meter, "gpt-4o-mini", 10, nil)

	_, _, err := m.ExtractPayslip(context.Background(), ExtractRequest{UserID: "u1"})
	if !errors.Is(err, ErrSpendCapExceeded) {
		t.Fatalf("err = %v, want ErrSpendCapExceeded", err)
	}
	if inner.calls != 0 {
		t.Fatal("inner provider must not be called once the cap is hit")
	}
	if len(meter.recorded) != 0 {
		t.Fatal("no usage must be recorded for a refused call")
	}
}

func TestMeteredExtractorInnerFailureNotRecorded(t *testing.T) {
	inner := &stubExtractor{err: errors.New("upstream 500")}
	meter := &stubMeter{}
	m := NewMeteredExtractor(inner, meter, "gpt-4o-mini", 10, nil)

	if _, _, err := m.ExtractPayslip(context.Background(), ExtractRequest{UserID: "u1"}); err == nil {
		t.Fatal("expected the provider error to surface")
	}
	if len(meter.recorded) != 0 {
		t.Fatal("usage must not be recorded for a failed call")
	}
}

func TestMeteredExtractorSpendLookupFailure(t *testing.T) {
	inner := &stubExtractor{payload: &Extraction{}}
	meter := &stubMeter{spendErr: errors.New("db down")}
	m := NewMeteredExtractor(inner, meter, "gpt-4o-mini", 10, nil)

	if _, _, err := m.ExtractPayslip(context.Background(), ExtractRequest{UserID: "u1"}); err == nil {
		t.Fatal("expected spend lookup error to surface")
	}
	if inner.calls != 0 {
		t.Fatal("inner provider must not run without a spend figure")
	}
}
