package orchestrate

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/forgeloop/forgeloop/internal/app"
	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
	"github.com/forgeloop/forgeloop/internal/infra/sysinfo"
)

// runLockTTL bounds how long a crashed harness can block a successor
const runLockTTL = 2 * time.Hour

// RunLocker guards against two harness instances driving one project
type RunLocker interface {
	Acquire(ctx context.Context, lockID string, ttl time.Duration) (acquired bool, err error)
	Release(ctx context.Context, lockID string) error
}

// Harness is the composition root: it wires the orchestrator, recovery
// manager, and completion handler together and runs the backlog loop
// until completion, shutdown, or a fatal error.
type Harness struct {
	cfg          appconfig.Config
	orchestrator *Orchestrator
	recovery     *RecoveryManager
	backlogs     *repository.BacklogRepository
	agent        output.AgentGateway
	git          output.GitOperations
	locker       RunLocker
	healthPath   string
	alerter      Alerter

	// sleep is swapped in tests
	sleep func(time.Duration)
}

// NewHarness assembles the main loop
func NewHarness(
	cfg appconfig.Config,
	orchestrator *Orchestrator,
	recovery *RecoveryManager,
	backlogs *repository.BacklogRepository,
	agent output.AgentGateway,
	git output.GitOperations,
	locker RunLocker,
	healthPath string,
	alerter Alerter,
) *Harness {
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Harness{
		cfg:          cfg,
		orchestrator: orchestrator,
		recovery:     recovery,
		backlogs:     backlogs,
		agent:        agent,
		git:          git,
		locker:       locker,
		healthPath:   healthPath,
		alerter:      alerter,
		sleep:        time.Sleep,
	}
}

// Run executes the backlog loop. It returns nil when the backlog is
// complete or a graceful shutdown was requested; health-check failures
// and fatal error categories return an error.
func (h *Harness) Run(ctx context.Context) error {
	logger := app.GetLogger()

	if err := h.healthChecks(ctx); err != nil {
		return fmt.Errorf("startup health check: %w", err)
	}

	if h.locker != nil {
		acquired, err := h.locker.Acquire(ctx, h.cfg.ProjectName(), runLockTTL)
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("another harness instance is already running for %s", h.cfg.ProjectName())
		}
		defer h.locker.Release(ctx, h.cfg.ProjectName())
	}

	backlog, err := h.backlogs.Load()
	if err != nil {
		return err
	}

	if recoveredID, err := h.recovery.CheckForRecovery(); err != nil {
		logger.Warn("recovery check: %v", err)
	} else if recoveredID != "" {
		if f := backlog.FindFeature(recoveredID); f != nil {
			logger.Info("resuming interrupted work on %s (%s)", f.ID, f.Title)
		} else {
			logger.Warn("recovery state names unknown feature %s, ignoring", recoveredID)
		}
	}

	h.recovery.RegisterSignalHandler()
	defer h.recovery.Stop()

	sessionCount := 0
	for {
		if h.recovery.IsShutdownRequested() {
			if reason := h.recovery.StopRequestReason(); reason != "" {
				logger.Info("shutdown requested: %s", reason)
			} else {
				logger.Info("shutdown requested")
			}
			h.recovery.GracefulShutdown(ctx, "", nil, 0, "")
			return nil
		}

		if backlog.IsComplete() {
			logger.Info("backlog complete: %d feature(s) done after %d session(s)", len(backlog.Features), sessionCount)
			return nil
		}

		f := backlog.GetNextFeature()
		if f == nil {
			counts := backlog.CountByStatus()
			return fmt.Errorf("no eligible feature: %d pending/in_progress blocked by unmet dependencies or blocked status (%v)",
				counts[feature.StatusPending]+counts[feature.StatusInProgress], counts)
		}

		result, err := h.orchestrator.RunCodingSessionWithRetry(ctx, f, backlog)
		sessionCount++

		errMsg := ""
		ok := err == nil && result != nil && (result.Success || result.HandoffRequested)
		if err != nil {
			errMsg = err.Error()
		} else if result != nil && result.ErrorMessage != "" {
			errMsg = result.ErrorMessage
		}
		if werr := app.WriteHealth(h.healthPath, sessionCount, f.ID, ok, errMsg); werr != nil {
			logger.Warn("write health: %v", werr)
		}

		if err != nil {
			return err
		}
		if result.ErrorCategory.IsFatal() {
			h.alerter.FatalError(result.ErrorCategory, result.ErrorMessage)
			return fmt.Errorf("%s error: %s", result.ErrorCategory, result.ErrorMessage)
		}

		if max := h.cfg.MaxSessions(); max > 0 && sessionCount >= max {
			logger.Info("session cap reached (%d), stopping", max)
			return nil
		}

		h.sleep(h.cfg.Interval())
	}
}

// healthChecks verifies the environment before the first session: the
// backlog exists, the project is a git repository, the agent is reachable,
// and disk space is above the floor. Failures are fatal-to-start.
func (h *Harness) healthChecks(ctx context.Context) error {
	if !h.backlogs.Exists() {
		return fmt.Errorf("backlog not found (run 'forgeloop init' and register features first)")
	}
	if h.git != nil && !h.git.IsGitRepo() {
		return fmt.Errorf("project path %s is not a git repository", h.cfg.ProjectPath())
	}
	if h.agent != nil {
		if err := h.agent.HealthCheck(ctx); err != nil {
			return fmt.Errorf("agent unavailable: %w", err)
		}
	}
	if min := h.cfg.MinDiskSpaceMB(); min > 0 {
		free, err := sysinfo.FreeDiskSpaceMB(h.cfg.ProjectPath())
		if err != nil {
			app.GetLogger().Warn("disk space check unavailable: %v", err)
		} else if free < min {
			return fmt.Errorf("free disk space %dMB below required %dMB", free, min)
		}
	}
	if h.cfg.AgentMode() == "cli" || h.cfg.AgentMode() == "" {
		if _, err := exec.LookPath(h.cfg.AgentBin()); err != nil {
			return fmt.Errorf("agent binary %q not found on PATH", h.cfg.AgentBin())
		}
	}
	return nil
}
