package merge

import (
	"testing"

	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
)

func fptr(v float64) *float64 { return &v }
func sptr(s string) *string   { return &s }

func TestMergeNativeWins(t *testing.T) {
	native := extract.Native{
		EmployerName: "ACME LTD",
		Net:          fptr(1400),
		TaxCode:      "1257L",
	}
	payload := &llm.Extraction{
		EmployerName:      sptr("Acme Limited"),
		Net:               1395,
		Gross:             2000,
		TaxCode:           sptr("BR"),
		ConfidenceOverall: 0.93,
	}
	rec := Merge(native, payload)

	if rec.EmployerName != "ACME LTD" {
		t.Fatalf("EmployerName = %q, native must win", rec.EmployerName)
	}
	if *rec.Net != 1400 {
		t.Fatalf("Net = %v, native must win", *rec.Net)
	}
	if rec.TaxCode != "1257L" {
		t.Fatalf("TaxCode = %q, native must win", rec.TaxCode)
	}
	if rec.Gross == nil || *rec.Gross != 2000 {
		t.Fatalf("Gross = %v, payload must fill the gap", rec.Gross)
	}
	if rec.ConfidenceOverall != 0.93 {
		t.Fatalf("ConfidenceOverall = %v, want 0.93 from the payload", rec.ConfidenceOverall)
	}
}

func TestMergeNativeZeroIsPresent(t *testing.T) {
	native := extract.Native{PensionEmployee: fptr(0)}
	payload := &llm.Extraction{PensionEmployee: 75}
	rec := Merge(native, payload)
	if *rec.PensionEmployee != 0 {
		t.Fatalf("PensionEmployee = %v, explicit native zero must win", *rec.PensionEmployee)
	}
}

func TestMergeNilPayload(t *testing.T) {
	native := extract.Native{
		Net:      fptr(1400),
		Currency: "GBP",
		YTD:      map[string]any{"gross": 15000.0},
	}
	rec := Merge(native, nil)
	if *rec.Net != 1400 || rec.Currency != "GBP" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.OtherDeductions != 0 {
		t.Fatalf("OtherDeductions = %v, want 0 without a payload", rec.OtherDeductions)
	}
	if rec.ConfidenceOverall != 0 {
		t.Fatalf("ConfidenceOverall = %v, must stay unset without a payload", rec.ConfidenceOverall)
	}
}

func TestMergeCurrencyCountryFallback(t *testing.T) {
	rec := Merge(extract.Native{}, &llm.Extraction{Currency: "EUR", Country: "IE"})
	if rec.Currency != "EUR" || rec.Country != "IE" {
		t.Fatalf("Currency/Country = %q/%q, want payload fallback", rec.Currency, rec.Country)
	}

	rec = Merge(extract.Native{Currency: "GBP", Country: "UK"}, &llm.Extraction{Currency: "EUR", Country: "IE"})
	if rec.Currency != "GBP" || rec.Country != "UK" {
		t.Fatalf("Currency/Country = %q/%q, native must win", rec.Currency, rec.Country)
	}
}

func TestMergeYTDWholesale(t *testing.T) {
	payload := &llm.Extraction{YTD: map[string]any{"gross": 15000.0, "tax": 2400.0}}
	rec := Merge(extract.Native{}, payload)
	if len(rec.YTD) != 2 {
		t.Fatalf("YTD = %v, want payload mapping when native is empty", rec.YTD)
	}

	native := extract.Native{YTD: map[string]any{"gross": 14000.0}}
	rec = Merge(native, payload)
	if len(rec.YTD) != 1 || rec.YTD["gross"] != 14000.0 {
		t.Fatalf("YTD = %v, native mapping must be kept wholesale", rec.YTD)
	}
}

func TestSumDeductions(t *testing.T) {
	items := []llm.DeductionItem{
		{Label: "cycle scheme", Amount: 41.665},
		{Label: "union", Amount: 10.0},
	}
	if got := SumDeductions(items); got != 51.67 {
		t.Fatalf("SumDeductions = %v, want 51.67", got)
	}
	if got := SumDeductions(nil); got != 0 {
		t.Fatalf("SumDeductions(nil) = %v, want 0", got)
	}
}
