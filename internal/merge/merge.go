// Package merge reconciles native and vision-LLM extractions into the record
// that gets persisted.
package merge

import (
	"math"

	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
)

// Record is the reconciled field set for persistence.
type Record struct {
	EmployerName      string
	PayDate           string
	PeriodStart       string
	PeriodEnd         string
	PeriodType        string
	Currency          string
	Country           string
	Gross             *float64
	Net               *float64
	TaxIncome         *float64
	NiPrsi            *float64
	PensionEmployee   *float64
	PensionEmployer   *float64
	StudentLoan       *float64
	OtherDeductions   float64
	YTD               map[string]any
	TaxCode           string
	ConfidenceOverall float64
}

// Merge reconciles field by field: the native value wins whenever present
// (empty string counts as absent; an explicit zero does not), otherwise the
// LLM payload's value is used. other_deductions is always recomputed as the
// rounded sum of the LLM's itemized array; confidence_overall passes through
// from the payload and is recomputed elsewhere only when no LLM call was made.
func Merge(native extract.Native, payload *llm.Extraction) Record {
	rec := Record{
		EmployerName: native.EmployerName,
		PayDate:      native.PayDate,
		PeriodStart:  native.PeriodStart,
		PeriodEnd:    native.PeriodEnd,
		Currency:     native.Currency,
		Country:      native.Country,
		TaxCode:      native.TaxCode,
		YTD:          native.YTD,
	}
	rec.Gross = native.Gross
	rec.Net = native.Net
	rec.TaxIncome = native.TaxIncome
	rec.NiPrsi = native.NiPrsi
	rec.PensionEmployee = native.PensionEmployee
	rec.PensionEmployer = native.PensionEmployer
	rec.StudentLoan = native.StudentLoan

	if payload == nil {
		return rec
	}

	fillStr(&rec.EmployerName, payload.EmployerName)
	fillStr(&rec.PayDate, payload.PayDate)
	fillStr(&rec.PeriodStart, payload.PeriodStart)
	fillStr(&rec.PeriodEnd, payload.PeriodEnd)
	fillStr(&rec.TaxCode, payload.TaxCode)
	fillNum(&rec.Gross, payload.Gross)
	fillNum(&rec.Net, payload.Net)
	fillNum(&rec.TaxIncome, payload.TaxIncome)
	fillNum(&rec.NiPrsi, payload.NiPrsi)
	fillNum(&rec.PensionEmployee, payload.PensionEmployee)
	fillNum(&rec.PensionEmployer, payload.PensionEmployer)
	fillNum(&rec.StudentLoan, payload.StudentLoan)
	if len(rec.YTD) == 0 && len(payload.YTD) > 0 {
		rec.YTD = payload.YTD
	}

	rec.OtherDeductions = SumDeductions(payload.OtherDeductions)
	rec.ConfidenceOverall = payload.ConfidenceOverall

	// Currency and country fall back to the payload when still empty after the
	// per-field loop.
	if rec.Currency == "" {
		rec.Currency = payload.Currency
	}
	if rec.Country == "" {
		rec.Country = payload.Country
	}
	return rec
}

// SumDeductions totals an itemized deductions array, rounded to 2 places.
// An absent or empty array sums to 0.
func SumDeductions(items []llm.DeductionItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Amount
	}
	return math.Round(total*100) / 100
}

func fillStr(dst *string, src *string) {
	if *dst == "" && src != nil {
		*dst = *src
	}
}

func fillNum(dst **float64, src float64) {
	if *dst == nil {
		v := src
		*dst = &v
	}
}
