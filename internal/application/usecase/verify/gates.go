package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
)

// gateCommandTimeout bounds each lint/type-check/custom-validator run
const gateCommandTimeout = 120 * time.Second

// maxViolationsShown caps the file-size violations listed in a report
const maxViolationsShown = 10

// sourceExtensions are the file types scanned by the max-file-lines gate
var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true,
	".ts": true, ".tsx": true, ".java": true, ".rb": true,
	".rs": true, ".c": true, ".cc": true, ".cpp": true, ".h": true,
}

// skippedDirs are vendor and build trees excluded from file scans
var skippedDirs = map[string]bool{
	"node_modules": true, "__pycache__": true, "venv": true,
	"dist": true, "build": true, "vendor": true,
}

// QualityGateValidator runs configured pass/fail checks against a project
// before a feature may be marked complete. Check failures are results,
// never errors: a failing lint run is an expected outcome.
type QualityGateValidator struct {
	fs          afero.Fs
	projectPath string
	runner      CommandRunner
}

// NewQualityGateValidator creates a validator for the given project tree
func NewQualityGateValidator(fs afero.Fs, projectPath string, runner CommandRunner) *QualityGateValidator {
	if runner == nil {
		runner = ShellRunner{}
	}
	return &QualityGateValidator{fs: fs, projectPath: projectPath, runner: runner}
}

// Validate merges feature and default gates, then runs lint, type check,
// the max-file-lines scan, and each custom validator in order.
func (v *QualityGateValidator) Validate(ctx context.Context, f *feature.Feature, defaults *gate.QualityGates) *ValidationReport {
	gates := gate.Merge(f.QualityGates, defaults)
	report := &ValidationReport{FeatureID: f.ID}

	if gates.LintCommand != "" {
		report.add(v.runCommandGate(ctx, "lint", gates.LintCommand))
	}
	if gates.TypeCheckCommand != "" {
		report.add(v.runCommandGate(ctx, "type_check", gates.TypeCheckCommand))
	}
	if gates.MaxFileLines > 0 {
		report.add(v.checkFileSizes(gates.MaxFileLines))
	}
	if len(gates.SecurityChecklist) > 0 {
		report.add(ValidationResult{
			Name:     "security_checklist",
			Severity: SeverityWarning,
			Passed:   true,
			Message:  fmt.Sprintf("%d checklist item(s) to review before release", len(gates.SecurityChecklist)),
			Details:  gates.SecurityChecklist,
		})
	}
	for i, cmd := range gates.CustomValidators {
		result := v.runCommandGate(ctx, fmt.Sprintf("custom_%d", i+1), cmd)
		report.add(result)
	}

	report.finalize()
	return report
}

// runCommandGate executes one shell check; exit code 0 is the contract
func (v *QualityGateValidator) runCommandGate(ctx context.Context, name, command string) ValidationResult {
	start := time.Now()
	res := v.runner.Run(ctx, command, v.projectPath, nil, gateCommandTimeout)

	result := ValidationResult{
		Name:     name,
		Severity: SeverityError,
		Duration: time.Since(start),
	}
	switch {
	case res.TimedOut:
		result.Message = fmt.Sprintf("%s timed out after %s", command, gateCommandTimeout)
	case res.Err != nil:
		result.Message = fmt.Sprintf("%s failed to start: %v", command, res.Err)
	case res.ExitCode != 0:
		result.Message = fmt.Sprintf("%s exited with code %d", command, res.ExitCode)
		result.Details = []string{truncateOutput(res.Output)}
	default:
		result.Passed = true
		result.Message = fmt.Sprintf("%s passed", name)
	}
	return result
}

// checkFileSizes scans source files and reports every one over the limit
func (v *QualityGateValidator) checkFileSizes(maxLines int) ValidationResult {
	start := time.Now()
	var violations []string

	afero.Walk(v.fs, v.projectPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		name := info.Name()
		if info.IsDir() {
			if skippedDirs[name] || (strings.HasPrefix(name, ".") && path != v.projectPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[filepath.Ext(name)] {
			return nil
		}

		lines, err := v.countLines(path)
		if err == nil && lines > maxLines {
			rel, relErr := filepath.Rel(v.projectPath, path)
			if relErr != nil {
				rel = path
			}
			violations = append(violations, fmt.Sprintf("%s: %d lines (limit %d)", rel, lines, maxLines))
		}
		return nil
	})

	result := ValidationResult{
		Name:     "max_file_lines",
		Severity: SeverityError,
		Duration: time.Since(start),
	}
	if len(violations) == 0 {
		result.Passed = true
		result.Message = fmt.Sprintf("all source files within %d lines", maxLines)
		return result
	}

	result.Message = fmt.Sprintf("%d file(s) exceed %d lines", len(violations), maxLines)
	if len(violations) > maxViolationsShown {
		result.Details = append(violations[:maxViolationsShown],
			fmt.Sprintf("... and %d more", len(violations)-maxViolationsShown))
	} else {
		result.Details = violations
	}
	return result
}

func (v *QualityGateValidator) countLines(path string) (int, error) {
	f, err := v.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	return lines, scanner.Err()
}
