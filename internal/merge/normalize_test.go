package merge

import "testing"

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-03-31", "2024-03-31"},
		{"2024-03-31T00:00:00Z", "2024-03-31"},
		{"2024-03-31T12:30:00", "2024-03-31"},
		{"2024-03-31 12:30:00", "2024-03-31"},
		{"31/03/2024", ""},
		{"not a date", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeDate(tc.in); got != tc.want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInferPeriodType(t *testing.T) {
	cases := []struct {
		name  string
		start string
		end   string
		want  string
	}{
		{"calendar month", "2024-03-01", "2024-03-31", "monthly"},
		{"february", "2024-02-01", "2024-02-28", "monthly"},
		{"fortnight", "2024-03-01", "2024-03-14", "fortnightly"},
		{"week", "2024-03-01", "2024-03-07", "weekly"},
		{"six days still weekly", "2024-03-01", "2024-03-06", "weekly"},
		{"too short", "2024-03-01", "2024-03-03", ""},
		{"missing start", "", "2024-03-31", ""},
		{"missing end", "2024-03-01", "", ""},
		{"unparseable", "soon", "later", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferPeriodType(tc.start, tc.end); got != tc.want {
				t.Fatalf("InferPeriodType(%q, %q) = %q, want %q", tc.start, tc.end, got, tc.want)
			}
		})
	}
}
