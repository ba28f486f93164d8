package llm

// BuildPayslipJSONSchema returns the extraction schema (JSON-Schema draft
// 2020-12 subset) as a generic map. Providers pass it to the model as a
// structured-output constraint and we validate every payload against it
// locally before use.
func BuildPayslipJSONSchema() map[string]any {
	dateProp := map[string]any{
		"type":    []any{"string", "null"},
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"country":          map[string]any{"enum": []any{"UK", "IE"}},
			"employer_name":    map[string]any{"type": []any{"string", "null"}},
			"pay_date":         dateProp,
			"period_start":     dateProp,
			"period_end":       dateProp,
			"currency":         map[string]any{"enum": []any{"GBP", "EUR"}},
			"gross":            map[string]any{"type": "number"},
			"net":              map[string]any{"type": "number"},
			"tax_income":       map[string]any{"type": "number"},
			"ni_prsi":          map[string]any{"type": "number"},
			"pension_employee": map[string]any{"type": "number"},
			"pension_employer": map[string]any{"type": "number"},
			"student_loan":     map[string]any{"type": "number"},
			"other_deductions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label":  map[string]any{"type": "string"},
						"amount": map[string]any{"type": "number"},
					},
				},
			},
			"ytd":      map[string]any{"type": "object"},
			"tax_code": map[string]any{"type": []any{"string", "null"}},
			"confidence_overall": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
		},
		"required": []any{
			"country",
			"currency",
			"gross",
			"net",
			"tax_income",
			"ni_prsi",
			"pension_employee",
			"student_loan",
			"other_deductions",
			"ytd",
			"confidence_overall",
		},
	}
}
