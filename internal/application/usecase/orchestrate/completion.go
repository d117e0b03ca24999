package orchestrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/app"
	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/application/usecase/verify"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

// testFilePatterns matches test files across the ecosystems the harness
// drives. Used by the grace-period policy, not by verification.
var testFilePatterns = []string{
	"*_test.go", "test_*.py", "*_test.py",
	"*.test.js", "*.test.ts", "*.spec.js", "*.spec.ts", "*.spec.tsx",
}

// CompletionHandler finalizes a feature once a session claims success.
// Two mutually exclusive paths: the full verification pipeline when a
// VerificationConfig is present, else the legacy quality-gate path with
// its grace-period missing-tests warning.
type CompletionHandler struct {
	cfg       appconfig.Config
	fs        afero.Fs
	validator *verify.QualityGateValidator
	verifier  *verify.FeatureVerifier // nil selects the legacy path

	backlogs *repository.BacklogRepository
	states   *repository.SessionStateRepository
	history  *repository.HistoryRepository
	progress *repository.ProgressLog
	alerter  Alerter
}

// NewCompletionHandler wires the completion path
func NewCompletionHandler(
	cfg appconfig.Config,
	fs afero.Fs,
	validator *verify.QualityGateValidator,
	verifier *verify.FeatureVerifier,
	backlogs *repository.BacklogRepository,
	states *repository.SessionStateRepository,
	history *repository.HistoryRepository,
	progress *repository.ProgressLog,
	alerter Alerter,
) *CompletionHandler {
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &CompletionHandler{
		cfg:       cfg,
		fs:        fs,
		validator: validator,
		verifier:  verifier,
		backlogs:  backlogs,
		states:    states,
		history:   history,
		progress:  progress,
		alerter:   alerter,
	}
}

// CompleteFeature validates the claimed completion and, when it holds,
// marks the feature completed, records history, and clears recovery state.
// On a failed validation the feature stays in_progress with a note for the
// next session, and false is returned without error.
func (h *CompletionHandler) CompleteFeature(ctx context.Context, sessionID string, f *feature.Feature, result *session.Result, backlog *feature.Backlog) (bool, error) {
	startedAt := time.Now().UTC().Add(-result.Duration)

	if h.verifier != nil {
		report := h.verifier.Verify(ctx, f, false, nil)
		if !report.Passed {
			note := fmt.Sprintf("verification failed: %s", strings.Join(report.FailedChecks(), ", "))
			if report.RequiresApproval && !report.Approved {
				note = "verification failed: manual approval not granted"
			}
			return false, h.recordFailure(f, backlog, note)
		}
	} else {
		report := h.validator.Validate(ctx, f, h.cfg.DefaultGates())
		if !report.Passed {
			var failed []string
			for _, res := range report.Results {
				if res.Severity == verify.SeverityError && !res.Passed {
					failed = append(failed, res.Name)
				}
			}
			note := fmt.Sprintf("quality gates failed: %s", strings.Join(failed, ", "))
			return false, h.recordFailure(f, backlog, note)
		}
		h.applyTestGracePolicy(f, backlog)
	}

	record := session.NewRecord(sessionID, f.ID, session.OutcomeSuccess, startedAt, time.Now().UTC())
	record.InputTokens = result.Usage.InputTokens
	record.OutputTokens = result.Usage.OutputTokens
	record.CostUSD = result.Usage.CostUSD
	if err := h.history.Append(record); err != nil {
		return false, fmt.Errorf("record history: %w", err)
	}

	if err := backlog.MarkFeatureCompleted(f.ID); err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	if err := h.backlogs.Save(backlog); err != nil {
		return false, fmt.Errorf("save backlog: %w", err)
	}

	if err := h.states.Clear(); err != nil {
		app.GetLogger().Warn("clear recovery state: %v", err)
	}
	if err := h.progress.FeatureCompleted(sessionID, f.ID); err != nil {
		app.GetLogger().Warn("progress log: %v", err)
	}

	h.alerter.FeatureCompleted(f)
	return true, nil
}

// recordFailure leaves the feature in_progress and annotates it so the
// next session has context
func (h *CompletionHandler) recordFailure(f *feature.Feature, backlog *feature.Backlog, note string) error {
	if err := backlog.AddImplementationNote(f.ID, note); err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	if err := h.backlogs.Save(backlog); err != nil {
		return fmt.Errorf("save backlog: %w", err)
	}
	app.GetLogger().Warn("feature %s not completed: %s", f.ID, note)
	return nil
}

// applyTestGracePolicy warns, without blocking, once the project has
// accumulated enough completions with no test files anywhere in the tree.
// Merged gates with require_tests set skip the grace period and warn on
// every completion.
func (h *CompletionHandler) applyTestGracePolicy(f *feature.Feature, backlog *feature.Backlog) {
	merged := gate.Merge(f.QualityGates, h.cfg.DefaultGates())
	grace := h.cfg.TestWarningGraceCompletions()
	if grace <= 0 && !merged.RequireTests {
		return
	}

	completions := backlog.CountByStatus()[feature.StatusCompleted]
	if !merged.RequireTests && completions < grace {
		return
	}
	if h.projectHasTestFiles() {
		return
	}

	warning := fmt.Sprintf("WARNING: %d features completed and no test files detected in the project; add tests before the debt compounds", completions+1)
	h.alerter.Warning(warning)
	if err := backlog.AddImplementationNote(f.ID, warning); err != nil {
		app.GetLogger().Warn("append grace warning: %v", err)
	}
	if h.progress != nil {
		h.progress.Append(repository.ProgressEvent{
			Event:     "missing_tests_warning",
			FeatureID: f.ID,
			Detail:    warning,
		})
	}
}

// projectHasTestFiles scans for any file matching a known test pattern,
// skipping vendor trees
func (h *CompletionHandler) projectHasTestFiles() bool {
	found := false
	afero.Walk(h.fs, h.cfg.ProjectPath(), func(path string, info os.FileInfo, err error) error {
		if err != nil || found {
			return filepath.SkipAll
		}
		name := info.Name()
		if info.IsDir() {
			if name == "node_modules" || name == "__pycache__" || name == "venv" ||
				name == "dist" || name == "build" ||
				(strings.HasPrefix(name, ".") && path != h.cfg.ProjectPath()) {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pattern := range testFilePatterns {
			if ok, _ := filepath.Match(pattern, name); ok {
				found = true
				return filepath.SkipAll
			}
		}
		return nil
	})
	return found
}
