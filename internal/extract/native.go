package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
)

// Native holds fields heuristically parsed straight from document text,
// without any external service call. String fields use "" for absence;
// numeric fields use nil (zero is a valid present value).
type Native struct {
	EmployerName    string
	PayDate         string
	PeriodStart     string
	PeriodEnd       string
	Currency        string
	Country         string
	Gross           *float64
	Net             *float64
	TaxIncome       *float64
	NiPrsi          *float64
	PensionEmployee *float64
	PensionEmployer *float64
	StudentLoan     *float64
	OtherDeductions *float64
	YTD             map[string]any
	TaxCode         string
}

// Label hints per target field. First matching line wins; within the line the
// amount is taken from the last parseable token.
var fieldHints = []struct {
	field string
	hints []string
}{
	{"gross", []string{"gross pay", "gross", "total gross"}},
	{"net", []string{"net pay", "take home", "net"}},
	{"tax_income", []string{"tax", "income tax"}},
	{"ni_prsi", []string{"ni", "national insurance", "prsi"}},
	{"pension_employee", []string{"pension", "employee pension"}},
	{"student_loan", []string{"student loan"}},
}

// GuessCurrency returns EUR or GBP from obvious markers, "" when unknown.
// Euro is checked before pound on purpose; tests pin this precedence. The
// code match requires a leading space so words containing EUR/GBP do not
// count.
func GuessCurrency(text string) string {
	upper := strings.ToUpper(text)
	if strings.Contains(text, "€") || strings.Contains(upper, " EUR") {
		return constants.CurrencyEUR
	}
	if strings.Contains(text, "£") || strings.Contains(upper, " GBP") {
		return constants.CurrencyGBP
	}
	return ""
}

// GuessCountry returns UK or IE from jurisdiction markers, "" when unknown.
func GuessCountry(text string) string {
	upper := strings.ToUpper(text)
	if strings.Contains(upper, "HMRC") || strings.Contains(upper, "NI NUMBER") {
		return constants.CountryUK
	}
	if strings.Contains(upper, "PPS") || strings.Contains(upper, "PRSI") {
		return constants.CountryIE
	}
	return ""
}

// ParseAmount strips thousands separators, currency symbols and the
// middle-dot OCR artifact before parsing. Returns nil on failure.
// Negative and parenthesised amounts are not handled.
func ParseAmount(token string) *float64 {
	r := strings.NewReplacer(",", "", "£", "", "€", "", "·", "")
	cleaned := r.Replace(token)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	rounded := math.Round(f*100) / 100
	return &rounded
}

// ExtractKVPairs scans text lines for the labelled pay amounts. For each field
// the first line containing any hint is scanned token-by-token in reverse for
// the first parseable amount. A field with no match stays absent.
func ExtractKVPairs(text string) map[string]float64 {
	lowered := strings.ToLower(text)
	lines := strings.Split(lowered, "\n")
	results := make(map[string]float64)
	for _, fh := range fieldHints {
		for _, line := range lines {
			if _, done := results[fh.field]; done {
				break
			}
			if !containsAny(line, fh.hints) {
				continue
			}
			parts := strings.Fields(line)
			for i := len(parts) - 1; i >= 0; i-- {
				if amount := ParseAmount(parts[i]); amount != nil {
					results[fh.field] = *amount
					break
				}
			}
		}
	}
	return results
}

func containsAny(line string, hints []string) bool {
	for _, hint := range hints {
		if strings.Contains(line, hint) {
			return true
		}
	}
	return false
}

// FromText runs every native heuristic over raw text. Never fails; absence is
// the only failure signal.
func FromText(text string) Native {
	n := Native{
		Currency: GuessCurrency(text),
		Country:  GuessCountry(text),
		TaxCode:  guessTaxCode(text),
	}
	kv := ExtractKVPairs(text)
	assign := func(dst **float64, key string) {
		if v, ok := kv[key]; ok {
			val := v
			*dst = &val
		}
	}
	assign(&n.Gross, "gross")
	assign(&n.Net, "net")
	assign(&n.TaxIncome, "tax_income")
	assign(&n.NiPrsi, "ni_prsi")
	assign(&n.PensionEmployee, "pension_employee")
	assign(&n.StudentLoan, "student_loan")
	return n
}

// guessTaxCode picks the token following a "tax code" label, if any.
func guessTaxCode(text string) string {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		idx := strings.Index(lower, "tax code")
		if idx < 0 {
			continue
		}
		rest := strings.TrimLeft(line[idx+len("tax code"):], " \t:")
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// PopulatedFieldCount counts the populated members of the fixed nine-field set
// used by the confidence policy.
func (n Native) PopulatedFieldCount() int {
	count := 0
	for _, f := range []*float64{n.Gross, n.Net, n.TaxIncome, n.NiPrsi, n.PensionEmployee} {
		if f != nil {
			count++
		}
	}
	for _, s := range []string{n.PayDate, n.PeriodStart, n.PeriodEnd, n.TaxCode} {
		if s != "" {
			count++
		}
	}
	return count
}
