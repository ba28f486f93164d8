package extract

import "strings"

// ocrFieldFloor is the minimum populated-field count below which the primary
// text pass is considered too weak and the OCR fallback runs. Deliberately
// low: the expensive OCR path should fire whenever native text is clearly
// insufficient.
const ocrFieldFloor = 4

// NeedsOCR reports whether the OCR fallback should run: the primary pass
// produced no text at all, or too few native fields were populated.
func NeedsOCR(native Native, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	return native.PopulatedFieldCount() < ocrFieldFloor
}

// Augment fills fields absent in the primary extraction from the OCR-derived
// one. Present primary values are never overridden; YTD is taken wholesale
// only when the primary mapping is empty.
func Augment(primary, fromOCR Native) Native {
	out := primary
	fillStr := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fillNum := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			v := *src
			*dst = &v
		}
	}
	fillStr(&out.EmployerName, fromOCR.EmployerName)
	fillStr(&out.PayDate, fromOCR.PayDate)
	fillStr(&out.PeriodStart, fromOCR.PeriodStart)
	fillStr(&out.PeriodEnd, fromOCR.PeriodEnd)
	fillStr(&out.Currency, fromOCR.Currency)
	fillStr(&out.Country, fromOCR.Country)
	fillStr(&out.TaxCode, fromOCR.TaxCode)
	fillNum(&out.Gross, fromOCR.Gross)
	fillNum(&out.Net, fromOCR.Net)
	fillNum(&out.TaxIncome, fromOCR.TaxIncome)
	fillNum(&out.NiPrsi, fromOCR.NiPrsi)
	fillNum(&out.PensionEmployee, fromOCR.PensionEmployee)
	fillNum(&out.PensionEmployer, fromOCR.PensionEmployer)
	fillNum(&out.StudentLoan, fromOCR.StudentLoan)
	fillNum(&out.OtherDeductions, fromOCR.OtherDeductions)
	if len(out.YTD) == 0 && len(fromOCR.YTD) > 0 {
		out.YTD = fromOCR.YTD
	}
	return out
}

// CombineTexts concatenates the primary and OCR texts (primary first) for
// downstream consumers such as redaction.
func CombineTexts(primary, ocr string) string {
	switch {
	case primary == "":
		return ocr
	case ocr == "":
		return primary
	}
	return primary + "\n" + ocr
}
