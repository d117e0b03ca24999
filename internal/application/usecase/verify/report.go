package verify

import "time"

// Severity distinguishes blocking from advisory gate results
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// ValidationResult is the outcome of one quality-gate check
type ValidationResult struct {
	Name     string        `json:"name"`
	Severity Severity      `json:"severity"`
	Passed   bool          `json:"passed"`
	Message  string        `json:"message"`
	Details  []string      `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ValidationReport aggregates quality-gate results for one feature.
// Passed is true iff every ERROR-severity check passed; warnings never
// block completion.
type ValidationReport struct {
	FeatureID string             `json:"feature_id"`
	Results   []ValidationResult `json:"results"`
	Passed    bool               `json:"passed"`
}

func (r *ValidationReport) add(result ValidationResult) {
	r.Results = append(r.Results, result)
}

// finalize computes Passed from the accumulated results
func (r *ValidationReport) finalize() {
	r.Passed = true
	for _, res := range r.Results {
		if res.Severity == SeverityError && !res.Passed {
			r.Passed = false
			return
		}
	}
}

// ErrorCount returns the number of failed ERROR-severity checks
func (r *ValidationReport) ErrorCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Severity == SeverityError && !res.Passed {
			n++
		}
	}
	return n
}

// WarningCount returns the number of failed WARNING-severity checks
func (r *ValidationReport) WarningCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Severity == SeverityWarning && !res.Passed {
			n++
		}
	}
	return n
}

// VerificationResult is the outcome of one verification-pipeline check
type VerificationResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped"`
	Message  string        `json:"message"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// CoverageReport records the parsed coverage figure against its threshold
type CoverageReport struct {
	Percent   float64 `json:"percent"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Source    string  `json:"source"` // which report schema matched
}

// VerificationReport aggregates the full verification pipeline for one
// feature: checks, optional coverage, and manual-approval bookkeeping.
type VerificationReport struct {
	FeatureID        string               `json:"feature_id"`
	Results          []VerificationResult `json:"results"`
	Coverage         *CoverageReport      `json:"coverage,omitempty"`
	RequiresApproval bool                 `json:"requires_approval"`
	Approved         bool                 `json:"approved"`
	ApprovedBy       string               `json:"approved_by,omitempty"`
	Passed           bool                 `json:"passed"`
}

func (r *VerificationReport) add(result VerificationResult) {
	r.Results = append(r.Results, result)
}

// finalize computes Passed: every non-skipped check passed and, when
// approval is required, it was granted.
func (r *VerificationReport) finalize() {
	r.Passed = true
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			r.Passed = false
			break
		}
	}
	if r.RequiresApproval && !r.Approved {
		r.Passed = false
	}
}

// FailedChecks lists the names of non-skipped checks that failed
func (r *VerificationReport) FailedChecks() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			names = append(names, res.Name)
		}
	}
	return names
}
