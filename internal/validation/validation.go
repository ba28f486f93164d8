// Package validation implements the accounting-identity and consistency
// checks for merged payslip records, plus the confidence-scoring policy that
// gates the manual review queue.
package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
	"github.com/rory-hayes/payslip-buddy-ai/internal/merge"
)

// IdentityTolerance is the absolute currency-unit tolerance for the
// gross-minus-deductions identity.
const IdentityTolerance = 0.5

// ytdTolerance absorbs floating noise in year-to-date comparisons.
const ytdTolerance = 1e-6

var (
	ukTaxCode = regexp.MustCompile(`^((\d{1,4}[A-Z]{1,2})|([A-Z]{1,2}\d{1,4})|(NT|BR|D\d))$`)
	ieTaxCode = regexp.MustCompile(`^[A-Z]{1,2}\d{1,3}[A-Z]{0,2}$`)
)

// Outcomes maps the named checks to their boolean results.
type Outcomes struct {
	Identity bool
	YTD      bool
	Dates    bool
	Tax      bool
}

// AllPassed reports whether every check held.
func (o Outcomes) AllPassed() bool {
	return o.Identity && o.YTD && o.Dates && o.Tax
}

// ValidateIdentityRule checks gross - (tax + ni + pension_employee +
// student_loan + other_deductions) ≈ net. Absent gross or net fails the
// check; absent deduction components default to 0.
func ValidateIdentityRule(rec merge.Record) bool {
	if rec.Gross == nil || rec.Net == nil {
		return false
	}
	expectedNet := *rec.Gross - (orZero(rec.TaxIncome) + orZero(rec.NiPrsi) +
		orZero(rec.PensionEmployee) + orZero(rec.StudentLoan) + rec.OtherDeductions)
	return math.Abs(expectedNet-*rec.Net) <= IdentityTolerance
}

// ValidateYTDMonotonic checks that no year-to-date value regressed against
// the previous record. A missing previous mapping is trivially true (first
// record); non-numeric values are skipped, not failing.
func ValidateYTDMonotonic(current, previous map[string]any) bool {
	if len(current) == 0 || len(previous) == 0 {
		return true
	}
	for key, value := range current {
		cur, ok := toFloat(value)
		if !ok {
			continue
		}
		prevRaw, present := previous[key]
		if !present {
			continue
		}
		prev, ok := toFloat(prevRaw)
		if !ok {
			continue
		}
		if cur+ytdTolerance < prev {
			return false
		}
	}
	return true
}

// ValidateDateWindow checks period_start <= period_end <= pay_date for
// whichever dates are present. All-absent is trivially true; an unparseable
// date fails.
func ValidateDateWindow(payDate, periodStart, periodEnd string) bool {
	if payDate == "" && periodStart == "" && periodEnd == "" {
		return true
	}
	pay, ok := parseOptionalDate(payDate)
	if !ok {
		return false
	}
	start, ok := parseOptionalDate(periodStart)
	if !ok {
		return false
	}
	end, ok := parseOptionalDate(periodEnd)
	if !ok {
		return false
	}
	if start != nil && end != nil && start.After(*end) {
		return false
	}
	if end != nil && pay != nil && end.After(*pay) {
		return false
	}
	return true
}

// ValidateTaxCodeFormat checks the code against the jurisdiction's pattern.
// An absent code is trivially valid. Codes are upper-cased before matching;
// any country other than IE uses the UK pattern.
func ValidateTaxCodeFormat(taxCode, country string) bool {
	if taxCode == "" {
		return true
	}
	code := strings.ToUpper(strings.TrimSpace(taxCode))
	if country == constants.CountryIE {
		return ieTaxCode.MatchString(code)
	}
	return ukTaxCode.MatchString(code)
}

// Validate runs the full suite for a merged record against the previous YTD
// mapping.
func Validate(rec merge.Record, previousYTD map[string]any) Outcomes {
	return Outcomes{
		Identity: ValidateIdentityRule(rec),
		YTD:      ValidateYTDMonotonic(rec.YTD, previousYTD),
		Dates:    ValidateDateWindow(rec.PayDate, rec.PeriodStart, rec.PeriodEnd),
		Tax:      ValidateTaxCodeFormat(rec.TaxCode, rec.Country),
	}
}

// CalculateConfidence computes the native-path confidence score. Only called
// when no LLM response was obtained; the payload's own confidence is used
// verbatim otherwise.
func CalculateConfidence(native extract.Native, outcomes Outcomes, usedOCR bool) float64 {
	base := 0.60
	populated := native.PopulatedFieldCount()
	if outcomes.Identity && outcomes.AllPassed() {
		switch {
		case populated >= 7:
			if usedOCR {
				base = 0.92
			} else {
				base = 0.94
			}
		case populated >= 5:
			base = 0.90
		default:
			base = 0.85
		}
	} else if outcomes.Identity {
		base = 0.75
	}
	if usedOCR && base < 0.89 && populated >= 5 && outcomes.YTD {
		base = math.Max(base, 0.88)
	}
	return math.Round(base*1000) / 1000
}

// ReviewRequired gates the manual review queue: any failed check, or
// confidence under the threshold.
func ReviewRequired(outcomes Outcomes, confidence float64) bool {
	return !outcomes.AllPassed() || confidence < constants.ReviewThreshold
}

// parseOptionalDate returns (nil, true) for absent input and (nil, false)
// for unparseable input.
func parseOptionalDate(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	normalized := merge.NormalizeDate(value)
	if normalized == "" {
		return nil, false
	}
	t, err := time.Parse("2006-01-02", normalized)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
