package constants

// Countries recognised by the extraction pipeline.
const (
	CountryUK = "UK"
	CountryIE = "IE"
)

// Currencies recognised by the extraction pipeline.
const (
	CurrencyGBP = "GBP"
	CurrencyEUR = "EUR"
)

// PeriodType values inferred from the period window.
const (
	PeriodMonthly     = "monthly"
	PeriodFortnightly = "fortnightly"
	PeriodWeekly      = "weekly"
)

// AnomalyType identifies one of the month-over-month payroll detectors.
type AnomalyType string

const (
	AnomalyNetDrop        AnomalyType = "NET_DROP"
	AnomalyMissingPension AnomalyType = "MISSING_PENSION"
	AnomalyTaxCodeChange  AnomalyType = "TAX_CODE_CHANGE"
	AnomalyYTDRegression  AnomalyType = "YTD_REGRESSION"
	AnomalyNewDeduction   AnomalyType = "NEW_DEDUCTION"
)

// Severity of a detected anomaly.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ReviewThreshold is the minimum overall confidence for a payslip to bypass
// manual review. Shared between the native-confidence and LLM-confidence paths.
const ReviewThreshold = 0.9

// HistoryWindow bounds how many prior payslips anomaly detection compares against.
const HistoryWindow = 5
