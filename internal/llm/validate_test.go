package llm

import (
	"strings"
	"testing"
)

const validPayload = `{
  "country": "UK",
  "employer_name": "ACME LTD",
  "pay_date": "2024-03-31",
  "period_start": "2024-03-01",
  "period_end": "2024-03-31",
  "currency": "GBP",
  "gross": 2000,
  "net": 1400,
  "tax_income": 400,
  "ni_prsi": 150,
  "pension_employee": 50,
  "pension_employer": 60,
  "student_loan": 0,
  "other_deductions": [{"label": "union", "amount": 10}],
  "ytd": {"gross": 15000, "tax": 2400},
  "tax_code": "1257L",
  "confidence_overall": 0.93
}`

func TestDecodePayload(t *testing.T) {
	out, err := DecodePayload([]byte(validPayload))
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if out.Country != "UK" || out.Currency != "GBP" {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if out.EmployerName == nil || *out.EmployerName != "ACME LTD" {
		t.Fatalf("EmployerName = %v", out.EmployerName)
	}
	if out.Gross != 2000 || out.Net != 1400 {
		t.Fatalf("amounts: gross=%v net=%v", out.Gross, out.Net)
	}
	if len(out.OtherDeductions) != 1 || out.OtherDeductions[0].Label != "union" {
		t.Fatalf("OtherDeductions = %+v", out.OtherDeductions)
	}
	if out.ConfidenceOverall != 0.93 {
		t.Fatalf("ConfidenceOverall = %v", out.ConfidenceOverall)
	}
}

func TestDecodePayloadStripsCodeFences(t *testing.T) {
	fenced := "```json\n" + validPayload + "\n```"
	if _, err := DecodePayload([]byte(fenced)); err != nil {
		t.Fatalf("fenced payload must decode: %v", err)
	}
}

func TestDecodePayloadRejects(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"bad country", strings.Replace(validPayload, `"UK"`, `"US"`, 1)},
		{"missing required", strings.Replace(validPayload, `"gross": 2000,`, ``, 1)},
		{"bad date format", strings.Replace(validPayload, `"2024-03-31"`, `"31/03/2024"`, 1)},
		{"confidence out of range", strings.Replace(validPayload, `0.93`, `1.5`, 1)},
		{"extra property", strings.Replace(validPayload, `"country"`, `"surprise": 1, "country"`, 1)},
		{"not json", "gross: lots"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodePayload([]byte(tc.json)); err == nil {
				t.Fatal("expected decode to fail")
			}
		})
	}
}

func TestCleanJSONResponse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := CleanJSONResponse(tc.in); got != tc.want {
			t.Fatalf("CleanJSONResponse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
