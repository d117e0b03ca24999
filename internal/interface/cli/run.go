package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	agentgw "github.com/forgeloop/forgeloop/internal/adapter/gateway/agent"
	"github.com/forgeloop/forgeloop/internal/adapter/gateway/storage"
	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/application/usecase/orchestrate"
	"github.com/forgeloop/forgeloop/internal/application/usecase/verify"
	"github.com/forgeloop/forgeloop/internal/domain/service/retry"
	"github.com/forgeloop/forgeloop/internal/infra/gitops"
	"github.com/forgeloop/forgeloop/internal/infra/persistence/sqlite"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the autonomous harness against the backlog",
		Long: `Run drives the coding agent through the backlog one session at a
time: select the next eligible feature, execute a session, validate any
completion claim, and repeat until the backlog is done, a fatal error
occurs, or a shutdown is requested (Ctrl-C or 'forgeloop stop').`,
		RunE: func(c *cobra.Command, _ []string) error {
			return runHarness(c.Context())
		},
	}
}

func runHarness(ctx context.Context) error {
	cfg := globalConfig
	paths := app.ResolvePathsIn(cfg.Home())
	fs := afero.NewOsFs()

	backlogs := repository.NewBacklogRepository(fs, paths.Backlog)
	states := repository.NewSessionStateRepository(fs, paths.SessionState)
	history := repository.NewHistoryRepository(fs, paths.History)
	progress := repository.NewProgressLog(fs, paths.ProgressLog)

	db, err := sqlite.Open(paths.LockDB)
	if err != nil {
		return fmt.Errorf("open lock database: %w", err)
	}
	defer db.Close()
	locks := sqlite.NewRunLockRepository(db)
	if removed, err := locks.CleanupExpired(ctx); err != nil {
		app.GetLogger().Warn("cleanup expired locks: %v", err)
	} else if removed > 0 {
		app.GetLogger().Info("removed %d expired run lock(s)", removed)
	}
	locker := runLockAdapter{repo: locks}

	agent, err := agentgw.NewAgentGateway(cfg)
	if err != nil {
		return err
	}
	git := gitops.New(cfg.ProjectPath())

	validator := verify.NewQualityGateValidator(fs, cfg.ProjectPath(), nil)
	var verifier *verify.FeatureVerifier
	if cfg.Verification() != nil {
		verifier = verify.NewFeatureVerifier(cfg.Verification(), fs, cfg.ProjectPath(), nil)
	}

	archive, err := newArchiveGateway(paths)
	if err != nil {
		return err
	}

	completion := orchestrate.NewCompletionHandler(cfg, fs, validator, verifier,
		backlogs, states, history, progress, nil)
	orchestrator := orchestrate.NewOrchestrator(cfg, agent, git, nil,
		retry.NewPolicy(cfg.Retry()), completion,
		backlogs, states, history, progress, nil)
	if archive != nil {
		orchestrator.SetArchiveGateway(archive)
	}

	recovery := orchestrate.NewRecoveryManager(fs, paths.StopRequest, states, git)
	harness := orchestrate.NewHarness(cfg, orchestrator, recovery,
		backlogs, agent, git, locker, paths.Health, nil)

	return harness.Run(ctx)
}

// newArchiveGateway selects the artifact store from configuration
func newArchiveGateway(paths app.Paths) (output.ArchiveGateway, error) {
	switch globalConfig.ArchiveMode() {
	case "s3":
		return storage.NewS3ArchiveGateway(storage.S3Config{
			Bucket: globalConfig.S3Bucket(),
			Prefix: globalConfig.S3Prefix(),
			Region: globalConfig.S3Region(),
		})
	case "local":
		return storage.NewLocalArchiveGateway(paths.Var)
	default:
		// archival disabled
		return nil, nil
	}
}

// runLockAdapter exposes the SQLite lock repository through the
// orchestrate.RunLocker interface
type runLockAdapter struct {
	repo *sqlite.RunLockRepository
}

func (a runLockAdapter) Acquire(ctx context.Context, lockID string, ttl time.Duration) (bool, error) {
	lock, err := a.repo.Acquire(ctx, lockID, ttl)
	if err != nil {
		return false, err
	}
	return lock != nil, nil
}

func (a runLockAdapter) Release(ctx context.Context, lockID string) error {
	return a.repo.Release(ctx, lockID)
}
