package gate

import "time"

// VerificationConfig configures the full verification pipeline, a superset
// of quality gates: tests, coverage threshold, pre-complete hook, and
// manual approval. When a harness carries a VerificationConfig, feature
// completion uses this pipeline instead of the legacy quality-gate path.
type VerificationConfig struct {
	// Command checks; empty string skips the check.
	LintCommand      string `yaml:"lint_command"`
	TypeCheckCommand string `yaml:"type_check_command"`
	TestCommand      string `yaml:"test_command"`
	E2ECommand       string `yaml:"e2e_command"`

	// E2ETool is the executable probed before running E2E tests. When it
	// is not installed the E2E check is skipped instead of failed.
	E2ETool string `yaml:"e2e_tool"`

	// E2EGrepPatterns maps feature IDs to a --grep filter appended to the
	// E2E command.
	E2EGrepPatterns map[string]string `yaml:"e2e_grep_patterns"`

	// Coverage: the command produces a report file which is then parsed
	// and compared against the threshold (percent).
	CoverageCommand    string  `yaml:"coverage_command"`
	CoverageReportPath string  `yaml:"coverage_report_path"`
	CoverageThreshold  float64 `yaml:"coverage_threshold"`

	// PreCompleteHook is a user-supplied script invoked with feature
	// metadata as environment variables before completion.
	PreCompleteHook string        `yaml:"pre_complete_hook"`
	HookTimeout     time.Duration `yaml:"hook_timeout"`

	// Manual approval gating: required globally or for listed feature IDs.
	RequireManualApproval bool     `yaml:"require_manual_approval"`
	ApprovalFeatureIDs    []string `yaml:"approval_feature_ids"`
}

// ApprovalRequired reports whether the feature needs manual approval
func (c *VerificationConfig) ApprovalRequired(featureID string) bool {
	if c.RequireManualApproval {
		return true
	}
	for _, id := range c.ApprovalFeatureIDs {
		if id == featureID {
			return true
		}
	}
	return false
}
