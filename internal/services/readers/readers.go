// Package readers interprets the backend's pre-import reader report and
// decides whether an LPR upload may proceed, needs confirmation, or is
// blocked.
package readers

import (
	"fmt"

	"casetrack-desktop/internal/api"
)

// Decision is the gate outcome for a validated file
type Decision int

const (
	// DecisionProceed means no new or problematic readers: import directly
	DecisionProceed Decision = iota
	// DecisionConfirm means new readers will be created: ask the operator
	DecisionConfirm
	// DecisionBlocked means problematic readers were found: do not import
	DecisionBlocked
)

// String returns a short label for logs
func (d Decision) String() string {
	switch d {
	case DecisionProceed:
		return "proceed"
	case DecisionConfirm:
		return "confirm"
	case DecisionBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Report is the evaluated gate outcome plus the backend detail behind it
type Report struct {
	Decision   Decision
	Validation *api.ReaderValidation
}

// Evaluate turns a reader validation into a gate decision. A validation
// carrying a backend error is itself an error: nothing can be decided from
// it. Problematic readers always block, regardless of what the safe flag
// says.
func Evaluate(validation *api.ReaderValidation) (*Report, error) {
	if validation == nil {
		return nil, fmt.Errorf("no validation result to evaluate")
	}
	if validation.Error != "" {
		return nil, fmt.Errorf("reader validation failed: %s", validation.Error)
	}

	report := &Report{Validation: validation}

	switch {
	case len(validation.LectoresProblematicos) > 0:
		validation.EsSeguroProceder = false
		report.Decision = DecisionBlocked
	case !validation.EsSeguroProceder || len(validation.LectoresNuevos) > 0:
		report.Decision = DecisionConfirm
	default:
		report.Decision = DecisionProceed
	}

	return report, nil
}

// Summary describes the outcome in one line, suitable for logs and history
func (r *Report) Summary() string {
	v := r.Validation
	return fmt.Sprintf("%d records: %d existing, %d new, %d problematic readers (%s)",
		v.TotalRegistros, len(v.LectoresExistentes), len(v.LectoresNuevos),
		len(v.LectoresProblematicos), r.Decision)
}
