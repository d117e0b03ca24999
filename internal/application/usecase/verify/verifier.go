package verify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
)

// Per-check timeouts for the verification pipeline
const (
	checkTimeout    = 120 * time.Second
	testTimeout     = 300 * time.Second
	e2eTimeout      = 600 * time.Second
	defaultHookWait = 120 * time.Second
)

// ApprovalCallback resolves a manual-approval request programmatically.
// It returns the approver identity and whether approval was granted.
type ApprovalCallback func(f *feature.Feature, report *VerificationReport) (approvedBy string, ok bool)

// LookPathFunc probes for an installed executable; swapped in tests
type LookPathFunc func(name string) (string, error)

// FeatureVerifier runs the full verification pipeline for a feature:
// lint, type check, unit tests, E2E tests, coverage threshold, the
// pre-complete hook, and manual approval when required.
type FeatureVerifier struct {
	cfg         *gate.VerificationConfig
	fs          afero.Fs
	projectPath string
	runner      CommandRunner
	lookPath    LookPathFunc

	// Terminal streams for the interactive approval prompt
	Stdin  io.Reader
	Stdout io.Writer
}

// NewFeatureVerifier creates a verifier over the given project tree
func NewFeatureVerifier(cfg *gate.VerificationConfig, fs afero.Fs, projectPath string, runner CommandRunner) *FeatureVerifier {
	if runner == nil {
		runner = ShellRunner{}
	}
	return &FeatureVerifier{
		cfg:         cfg,
		fs:          fs,
		projectPath: projectPath,
		runner:      runner,
		lookPath:    exec.LookPath,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
	}
}

// Verify runs every configured check. Unconfigured checks are omitted;
// a missing E2E tool skips rather than fails. Approval resolution order:
// callback, then interactive prompt, then automatic failure.
func (v *FeatureVerifier) Verify(ctx context.Context, f *feature.Feature, interactive bool, onApproval ApprovalCallback) *VerificationReport {
	report := &VerificationReport{FeatureID: f.ID}

	if v.cfg.LintCommand != "" {
		report.add(v.runCheck(ctx, "lint", v.cfg.LintCommand, nil, checkTimeout))
	}
	if v.cfg.TypeCheckCommand != "" {
		report.add(v.runCheck(ctx, "type_check", v.cfg.TypeCheckCommand, nil, checkTimeout))
	}
	if v.cfg.TestCommand != "" {
		report.add(v.runCheck(ctx, "unit_tests", v.cfg.TestCommand, nil, testTimeout))
	}
	if v.cfg.E2ECommand != "" {
		report.add(v.runE2E(ctx, f))
	}
	if v.cfg.CoverageCommand != "" {
		result, coverage := v.runCoverage(ctx)
		report.add(result)
		report.Coverage = coverage
	}
	if v.cfg.PreCompleteHook != "" {
		report.add(v.runHook(ctx, f))
	}

	if v.cfg.ApprovalRequired(f.ID) {
		report.RequiresApproval = true
		v.resolveApproval(f, report, interactive, onApproval)
	}

	report.finalize()
	return report
}

// runCheck executes one shell command check with its timeout
func (v *FeatureVerifier) runCheck(ctx context.Context, name, command string, env []string, timeout time.Duration) VerificationResult {
	start := time.Now()
	res := v.runner.Run(ctx, command, v.projectPath, env, timeout)

	result := VerificationResult{Name: name, Duration: time.Since(start)}
	switch {
	case res.TimedOut:
		result.Message = fmt.Sprintf("timed out after %s", timeout)
	case res.Err != nil:
		result.Message = fmt.Sprintf("failed to start: %v", res.Err)
	case res.ExitCode != 0:
		result.Message = fmt.Sprintf("exited with code %d", res.ExitCode)
		result.Details = truncateOutput(res.Output)
	default:
		result.Passed = true
		result.Message = "passed"
	}
	return result
}

// runE2E runs end-to-end tests, narrowing with a per-feature --grep
// pattern and skipping entirely when the E2E tool is not installed
func (v *FeatureVerifier) runE2E(ctx context.Context, f *feature.Feature) VerificationResult {
	if v.cfg.E2ETool != "" {
		if _, err := v.lookPath(v.cfg.E2ETool); err != nil {
			return VerificationResult{
				Name:    "e2e_tests",
				Skipped: true,
				Message: fmt.Sprintf("%s not installed, skipping", v.cfg.E2ETool),
			}
		}
	}

	command := v.cfg.E2ECommand
	if pattern, ok := v.cfg.E2EGrepPatterns[f.ID]; ok && pattern != "" {
		command = fmt.Sprintf("%s --grep %q", command, pattern)
	}
	return v.runCheck(ctx, "e2e_tests", command, nil, e2eTimeout)
}

// runCoverage executes the coverage command, parses the report file, and
// checks the threshold. A passing test run with coverage below threshold
// is a failure.
func (v *FeatureVerifier) runCoverage(ctx context.Context) (VerificationResult, *CoverageReport) {
	result := v.runCheck(ctx, "coverage", v.cfg.CoverageCommand, nil, checkTimeout)
	if !result.Passed {
		return result, nil
	}

	reportPath := v.cfg.CoverageReportPath
	if !filepath.IsAbs(reportPath) {
		reportPath = filepath.Join(v.projectPath, reportPath)
	}
	data, err := afero.ReadFile(v.fs, reportPath)
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("coverage report missing: %v", err)
		return result, nil
	}

	percent, source, err := ParseCoveragePercent(data)
	if err != nil {
		result.Passed = false
		result.Message = err.Error()
		return result, nil
	}

	coverage := &CoverageReport{
		Percent:   percent,
		Threshold: v.cfg.CoverageThreshold,
		Passed:    percent >= v.cfg.CoverageThreshold,
		Source:    source,
	}
	if coverage.Passed {
		result.Message = fmt.Sprintf("%.1f%% coverage (threshold %.1f%%)", percent, coverage.Threshold)
	} else {
		result.Passed = false
		result.Message = fmt.Sprintf("%.1f%% coverage below threshold %.1f%%", percent, coverage.Threshold)
	}
	return result, coverage
}

// runHook invokes the pre-complete hook script with feature metadata in
// the environment
func (v *FeatureVerifier) runHook(ctx context.Context, f *feature.Feature) VerificationResult {
	timeout := v.cfg.HookTimeout
	if timeout == 0 {
		timeout = defaultHookWait
	}

	start := time.Now()
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := hookCommand(hookCtx, v.cfg.PreCompleteHook)
	cmd.Dir = v.projectPath
	cmd.Env = append(cmd.Environ(),
		"FORGELOOP_FEATURE_ID="+f.ID,
		"FORGELOOP_FEATURE_TITLE="+f.Title,
		"FORGELOOP_FEATURE_STATUS="+string(f.Status),
		fmt.Sprintf("FORGELOOP_SESSIONS_SPENT=%d", f.SessionsSpent),
	)

	out, err := cmd.CombinedOutput()
	result := VerificationResult{Name: "pre_complete_hook", Duration: time.Since(start)}
	switch {
	case hookCtx.Err() == context.DeadlineExceeded:
		result.Message = fmt.Sprintf("timed out after %s", timeout)
	case err != nil:
		result.Message = fmt.Sprintf("hook failed: %v", err)
		result.Details = truncateOutput(string(out))
	default:
		result.Passed = true
		result.Message = "passed"
	}
	return result
}

// resolveApproval grants or denies the manual-approval gate. It never
// silently passes: with no callback and no terminal, approval fails with
// an explicit result.
func (v *FeatureVerifier) resolveApproval(f *feature.Feature, report *VerificationReport, interactive bool, onApproval ApprovalCallback) {
	if onApproval != nil {
		approvedBy, ok := onApproval(f, report)
		report.Approved = ok
		report.ApprovedBy = approvedBy
		return
	}

	if interactive {
		fmt.Fprintf(v.Stdout, "Feature %s (%s) requires manual approval. Approve? [y/N]: ", f.ID, f.Title)
		scanner := bufio.NewScanner(v.Stdin)
		if scanner.Scan() {
			answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if answer == "y" || answer == "yes" {
				report.Approved = true
				report.ApprovedBy = "interactive"
				return
			}
		}
		report.Approved = false
		return
	}

	report.add(VerificationResult{
		Name:    "manual_approval",
		Passed:  false,
		Message: "approval required but unavailable (no callback, non-interactive)",
	})
}
