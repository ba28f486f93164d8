package llm

import (
	"context"
	"errors"
)

// ErrSpendCapExceeded signals that the user's daily inference budget is spent.
// Non-fatal: the pipeline degrades to a native-only merge.
var ErrSpendCapExceeded = errors.New("daily llm spend cap exceeded")

// DeductionItem is one entry of the itemized other-deductions array.
type DeductionItem struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Extraction is the schema-validated payload returned by a vision extraction
// call. Nullable string fields are pointers; numeric fields are required by
// the schema.
type Extraction struct {
	Country           string          `json:"country"`
	EmployerName      *string         `json:"employer_name,omitempty"`
	PayDate           *string         `json:"pay_date,omitempty"`
	PeriodStart       *string         `json:"period_start,omitempty"`
	PeriodEnd         *string         `json:"period_end,omitempty"`
	Currency          string          `json:"currency"`
	Gross             float64         `json:"gross"`
	Net               float64         `json:"net"`
	TaxIncome         float64         `json:"tax_income"`
	NiPrsi            float64         `json:"ni_prsi"`
	PensionEmployee   float64         `json:"pension_employee"`
	PensionEmployer   float64         `json:"pension_employer"`
	StudentLoan       float64         `json:"student_loan"`
	OtherDeductions   []DeductionItem `json:"other_deductions"`
	YTD               map[string]any  `json:"ytd"`
	TaxCode           *string         `json:"tax_code,omitempty"`
	ConfidenceOverall float64         `json:"confidence_overall"`
}

// ExtractRequest carries everything a vision provider needs for one call.
type ExtractRequest struct {
	UserID string
	FileID string

	// Redacted preview images, PNG bytes, safe for external inference.
	Images [][]byte
}

// Usage records the cost of one inference call.
type Usage struct {
	TokensInput  int
	TokensOutput int
	CostUSD      float64
}

// VisionExtractor is the collaborator contract for vision-LLM extraction.
type VisionExtractor interface {
	ExtractPayslip(ctx context.Context, req ExtractRequest) (*Extraction, Usage, error)
}

// UsageMeter tracks per-user daily spend for the cap check.
type UsageMeter interface {
	TodaysSpendUSD(ctx context.Context, userID string) (float64, error)
	RecordUsage(ctx context.Context, userID, fileID, model string, usage Usage) error
}
