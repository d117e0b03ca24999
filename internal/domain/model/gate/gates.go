package gate

// QualityGates configures the pass/fail checks a feature must clear before
// it may be marked complete. A feature may carry its own QualityGates that
// override the harness defaults field-by-field (see Merge).
type QualityGates struct {
	// RequireTests makes the missing-test warning fire on every completion
	// instead of waiting out the grace period. The warning never blocks.
	RequireTests bool `json:"require_tests" yaml:"require_tests"`

	// MaxFileLines fails the gate when any source file exceeds this many
	// lines. Zero disables the check.
	MaxFileLines int `json:"max_file_lines" yaml:"max_file_lines"`

	// SecurityChecklist items are surfaced in prompts and reports; they
	// are not executed.
	SecurityChecklist []string `json:"security_checklist,omitempty" yaml:"security_checklist"`

	// LintCommand and TypeCheckCommand are shell commands whose exit code
	// decides the check. Empty disables the check.
	LintCommand      string `json:"lint_command,omitempty" yaml:"lint_command"`
	TypeCheckCommand string `json:"type_check_command,omitempty" yaml:"type_check_command"`

	// CustomValidators are additional shell commands run in list order.
	CustomValidators []string `json:"custom_validators,omitempty" yaml:"custom_validators"`
}

// Merge combines feature-level gates with harness defaults. For each field
// the feature value wins when it is set (true, non-zero, or non-empty),
// otherwise the default value is used. Either argument may be nil.
func Merge(featureGates, defaultGates *QualityGates) QualityGates {
	var merged QualityGates
	if defaultGates != nil {
		merged = *defaultGates
	}
	if featureGates == nil {
		return merged
	}

	if featureGates.RequireTests {
		merged.RequireTests = true
	}
	if featureGates.MaxFileLines > 0 {
		merged.MaxFileLines = featureGates.MaxFileLines
	}
	if len(featureGates.SecurityChecklist) > 0 {
		merged.SecurityChecklist = featureGates.SecurityChecklist
	}
	if featureGates.LintCommand != "" {
		merged.LintCommand = featureGates.LintCommand
	}
	if featureGates.TypeCheckCommand != "" {
		merged.TypeCheckCommand = featureGates.TypeCheckCommand
	}
	if len(featureGates.CustomValidators) > 0 {
		merged.CustomValidators = featureGates.CustomValidators
	}
	return merged
}
