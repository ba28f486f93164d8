// Package anomaly compares a payslip snapshot against a bounded history of
// prior snapshots for the same subject and flags month-over-month payroll
// irregularities.
package anomaly

import (
	"fmt"
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
)

// Snapshot is a point-in-time, read-only view of a persisted payslip.
// History lists are ordered most-recent-first and bounded by
// constants.HistoryWindow.
type Snapshot struct {
	PayslipID       string
	EmployerName    string
	Net             float64
	PensionEmployee float64
	TaxCode         string
	YTD             map[string]float64
	PayDate         time.Time
	Deductions      map[string]float64
}

// Anomaly is a single detector finding. Produced, never mutated.
type Anomaly struct {
	Type     constants.AnomalyType
	Severity constants.Severity
	Message  string
}

// netDropThreshold is the proportional decrease above which a net-pay drop
// against the same employer is flagged.
const netDropThreshold = 0.05

// DetectNetDrop flags a >5% net decrease against the most recent history
// entry with the same employer. A zero peer net counts as no drop.
func DetectNetDrop(current Snapshot, history []Snapshot) *Anomaly {
	var peer *Snapshot
	for i := range history {
		if history[i].EmployerName == current.EmployerName {
			peer = &history[i]
			break
		}
	}
	if peer == nil {
		return nil
	}
	drop := 0.0
	if peer.Net != 0 {
		drop = (peer.Net - current.Net) / peer.Net
	}
	if drop > netDropThreshold {
		return &Anomaly{
			Type:     constants.AnomalyNetDrop,
			Severity: constants.SeverityMedium,
			Message:  fmt.Sprintf("Net pay decreased by %.1f%% compared to previous period.", drop*100),
		}
	}
	return nil
}

// DetectMissingPension flags a zero employee pension when at least two
// history entries show nonzero contributions.
func DetectMissingPension(current Snapshot, history []Snapshot) *Anomaly {
	withPension := 0
	for _, p := range history {
		if p.PensionEmployee > 0 {
			withPension++
		}
	}
	if withPension >= 2 && current.PensionEmployee == 0 {
		return &Anomaly{
			Type:     constants.AnomalyMissingPension,
			Severity: constants.SeverityHigh,
			Message:  "Employee pension contributions missing despite previous deductions.",
		}
	}
	return nil
}

// DetectTaxCodeChange flags a current tax code that differs from any prior
// non-absent code.
func DetectTaxCodeChange(current Snapshot, history []Snapshot) *Anomaly {
	if current.TaxCode == "" {
		return nil
	}
	for _, p := range history {
		if p.TaxCode != "" && p.TaxCode != current.TaxCode {
			return &Anomaly{
				Type:     constants.AnomalyTaxCodeChange,
				Severity: constants.SeverityLow,
				Message:  "Tax code changed compared to prior periods.",
			}
		}
	}
	return nil
}

// DetectYTDRegression flags the first (history entry, key) pair where the
// current year-to-date value is strictly less than the historical one.
func DetectYTDRegression(current Snapshot, history []Snapshot) *Anomaly {
	for _, peer := range history {
		for key, value := range current.YTD {
			previous, ok := peer.YTD[key]
			if ok && value < previous {
				return &Anomaly{
					Type:     constants.AnomalyYTDRegression,
					Severity: constants.SeverityHigh,
					Message:  fmt.Sprintf("Year-to-date %s decreased from %.2f to %.2f.", key, previous, value),
				}
			}
		}
	}
	return nil
}

// DetectNewDeduction flags a positive current deduction whose label never
// appears anywhere in history.
func DetectNewDeduction(current Snapshot, history []Snapshot) *Anomaly {
	historic := make(map[string]struct{})
	for _, peer := range history {
		for label := range peer.Deductions {
			historic[label] = struct{}{}
		}
	}
	for label, amount := range current.Deductions {
		if _, seen := historic[label]; !seen && amount > 0 {
			return &Anomaly{
				Type:     constants.AnomalyNewDeduction,
				Severity: constants.SeverityMedium,
				Message:  fmt.Sprintf("New deduction detected: %s.", label),
			}
		}
	}
	return nil
}

// Detect runs all five detectors unconditionally. Findings preserve
// detector-definition order, not severity order.
func Detect(current Snapshot, history []Snapshot) []Anomaly {
	detectors := []func(Snapshot, []Snapshot) *Anomaly{
		DetectNetDrop,
		DetectMissingPension,
		DetectTaxCodeChange,
		DetectYTDRegression,
		DetectNewDeduction,
	}
	var findings []Anomaly
	for _, detect := range detectors {
		if a := detect(current, history); a != nil {
			findings = append(findings, *a)
		}
	}
	return findings
}
