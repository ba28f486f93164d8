package repository

import (
	"context"
	"sort"
)

// DossierTotals aggregates lifetime figures over trusted payslips.
type DossierTotals struct {
	Gross           float64
	Net             float64
	TaxIncome       float64
	NiPrsi          float64
	PensionEmployee float64
	PensionEmployer float64
}

// DossierMonth is one month's rollup line, keyed YYYY-MM.
type DossierMonth struct {
	Month           string
	Gross           float64
	Net             float64
	TaxIncome       float64
	NiPrsi          float64
	PensionEmployee float64
}

// Dossier is the rollup produced by the dossier job.
type Dossier struct {
	Totals DossierTotals
	Months []DossierMonth
}

// BuildDossier rolls up all payslips for the user that passed review,
// totalled overall and per pay-date month (ascending).
func (s *Store) BuildDossier(ctx context.Context, userID string) (*Dossier, error) {
	payslips, err := s.ListPayslips(ctx, userID)
	if err != nil {
		return nil, err
	}

	var d Dossier
	byMonth := make(map[string]*DossierMonth)
	for _, p := range payslips {
		if p.ReviewRequired {
			continue
		}
		rec := p.Record
		d.Totals.Gross += deref(rec.Gross)
		d.Totals.Net += deref(rec.Net)
		d.Totals.TaxIncome += deref(rec.TaxIncome)
		d.Totals.NiPrsi += deref(rec.NiPrsi)
		d.Totals.PensionEmployee += deref(rec.PensionEmployee)
		d.Totals.PensionEmployer += deref(rec.PensionEmployer)

		if len(rec.PayDate) < 7 {
			continue
		}
		month := rec.PayDate[:7]
		m, ok := byMonth[month]
		if !ok {
			m = &DossierMonth{Month: month}
			byMonth[month] = m
		}
		m.Gross += deref(rec.Gross)
		m.Net += deref(rec.Net)
		m.TaxIncome += deref(rec.TaxIncome)
		m.NiPrsi += deref(rec.NiPrsi)
		m.PensionEmployee += deref(rec.PensionEmployee)
	}

	for _, m := range byMonth {
		d.Months = append(d.Months, *m)
	}
	sort.Slice(d.Months, func(i, j int) bool { return d.Months[i].Month < d.Months[j].Month })
	return &d, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
