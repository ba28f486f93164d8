package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
)

// Service produces XLSX bytes for the export_all and hr_pack jobs.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// PayslipsXLSX renders every payslip into a single-sheet workbook, one row
// per payslip in the given order.
func (s *Service) PayslipsXLSX(ctx context.Context, payslips []repository.Payslip) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Payslips"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Pay Date",
		"Period Start",
		"Period End",
		"Period Type",
		"Employer",
		"Country",
		"Currency",
		"Gross",
		"Net",
		"Income Tax",
		"NI/PRSI",
		"Pension (EE)",
		"Pension (ER)",
		"Student Loan",
		"Other Deductions",
		"Tax Code",
		"Confidence",
		"Needs Review",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, p := range payslips {
		rec := p.Record
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, rec.PayDate)
		write(2, rec.PeriodStart)
		write(3, rec.PeriodEnd)
		write(4, rec.PeriodType)
		write(5, rec.EmployerName)
		write(6, rec.Country)
		write(7, rec.Currency)
		writeAmount(write, 8, rec.Gross)
		writeAmount(write, 9, rec.Net)
		writeAmount(write, 10, rec.TaxIncome)
		writeAmount(write, 11, rec.NiPrsi)
		writeAmount(write, 12, rec.PensionEmployee)
		writeAmount(write, 13, rec.PensionEmployer)
		writeAmount(write, 14, rec.StudentLoan)
		write(15, rec.OtherDeductions)
		write(16, rec.TaxCode)
		write(17, rec.ConfidenceOverall)
		write(18, p.ReviewRequired)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "C", 12)
	_ = f.SetColWidth(sheet, "E", "E", 28)
	_ = f.SetColWidth(sheet, "H", "O", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(payslips),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// DossierXLSX renders the lifetime totals plus the month-by-month rollup.
func (s *Service) DossierXLSX(ctx context.Context, d *repository.Dossier) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Dossier"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Lifetime Totals")
	totals := []struct {
		label string
		value float64
	}{
		{"Gross", d.Totals.Gross},
		{"Net", d.Totals.Net},
		{"Income Tax", d.Totals.TaxIncome},
		{"NI/PRSI", d.Totals.NiPrsi},
		{"Pension (EE)", d.Totals.PensionEmployee},
		{"Pension (ER)", d.Totals.PensionEmployer},
	}
	for i, t := range totals {
		write(1, i+2, t.label)
		write(2, i+2, t.value)
	}

	base := len(totals) + 3
	for i, h := range []string{"Month", "Gross", "Net", "Income Tax", "NI/PRSI", "Pension (EE)"} {
		write(i+1, base, h)
	}
	for i, m := range d.Months {
		row := base + 1 + i
		write(1, row, m.Month)
		write(2, row, m.Gross)
		write(3, row, m.Net)
		write(4, row, m.TaxIncome)
		write(5, row, m.NiPrsi)
		write(6, row, m.PensionEmployee)
	}

	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "F", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.dossier.ok", "months", len(d.Months))
	return buf.Bytes(), nil
}

func writeAmount(write func(int, any), col int, v *float64) {
	if v == nil {
		write(col, "")
		return
	}
	write(col, *v)
}
