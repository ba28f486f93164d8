package merge

import (
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate parses an ISO-ish date or datetime string and returns the
// date portion as YYYY-MM-DD. Empty input or a parse failure returns "".
func NormalizeDate(value string) string {
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// InferPeriodType maps the inclusive day count of the period window to a
// period type. Cutoffs are fixed: >=27 monthly, >=13 fortnightly, >=6 weekly,
// anything shorter (or a missing endpoint) is "".
func InferPeriodType(periodStart, periodEnd string) string {
	if periodStart == "" || periodEnd == "" {
		return ""
	}
	start, err := time.Parse("2006-01-02", NormalizeDate(periodStart))
	if err != nil {
		return ""
	}
	end, err := time.Parse("2006-01-02", NormalizeDate(periodEnd))
	if err != nil {
		return ""
	}
	days := int(end.Sub(start).Hours()/24) + 1
	switch {
	case days >= 27:
		return constants.PeriodMonthly
	case days >= 13:
		return constants.PeriodFortnightly
	case days >= 6:
		return constants.PeriodWeekly
	}
	return ""
}
