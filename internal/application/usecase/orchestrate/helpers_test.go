package orchestrate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/application/usecase/verify"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/domain/service/retry"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

// testEnv bundles the wired-up stores every orchestrate test needs
type testEnv struct {
	fs       afero.Fs
	cfg      appconfig.Config
	backlogs *repository.BacklogRepository
	states   *repository.SessionStateRepository
	history  *repository.HistoryRepository
	progress *repository.ProgressLog
}

func newTestEnv(t *testing.T, p appconfig.Params) *testEnv {
	t.Helper()
	fs := afero.NewMemMapFs()

	if p.ProjectPath == "" {
		p.ProjectPath = "/project"
	}
	if p.ProjectName == "" {
		p.ProjectName = "testproject"
	}
	if p.Model == "" {
		p.Model = "claude-sonnet-4-5"
	}
	if p.HandoffThresholdPercent == 0 {
		p.HandoffThresholdPercent = 85
	}
	if p.Retry.MaxRetries == 0 {
		p.Retry = retry.DefaultConfig()
		p.Retry.BaseDelaySeconds = 0 // no real sleeping in tests
		p.Retry.JitterFactor = 0
	}

	return &testEnv{
		fs:       fs,
		cfg:      appconfig.NewAppConfig(p),
		backlogs: repository.NewBacklogRepository(fs, "/home/var/backlog.json"),
		states:   repository.NewSessionStateRepository(fs, "/home/var/session_state.json"),
		history:  repository.NewHistoryRepository(fs, "/home/var/history.json"),
		progress: repository.NewProgressLog(fs, "/home/var/progress.log"),
	}
}

func (e *testEnv) newCompletion(t *testing.T, verifier *verify.FeatureVerifier) *CompletionHandler {
	t.Helper()
	validator := verify.NewQualityGateValidator(e.fs, e.cfg.ProjectPath(), nil)
	return NewCompletionHandler(e.cfg, e.fs, validator, verifier, e.backlogs, e.states, e.history, e.progress, nopAlerter{})
}

func (e *testEnv) newOrchestrator(t *testing.T, agent output.AgentGateway, git output.GitOperations, completion *CompletionHandler) *Orchestrator {
	t.Helper()
	if completion == nil {
		completion = e.newCompletion(t, nil)
	}
	policy := retry.NewPolicyWithSeed(e.cfg.Retry(), 42)
	o := NewOrchestrator(e.cfg, agent, git, nil, policy, completion, e.backlogs, e.states, e.history, e.progress, nopAlerter{})
	o.sleep = func(time.Duration) {}
	return o
}

func (e *testEnv) seedBacklog(t *testing.T, features ...*feature.Feature) *feature.Backlog {
	t.Helper()
	backlog := feature.NewBacklog(e.cfg.ProjectName(), e.cfg.ProjectPath())
	for _, f := range features {
		require.NoError(t, backlog.AddFeature(f))
	}
	require.NoError(t, e.backlogs.Save(backlog))
	return backlog
}

func newFeature(t *testing.T, id string, priority int) *feature.Feature {
	t.Helper()
	f, err := feature.NewFeature(id, "Feature "+id, priority)
	require.NoError(t, err)
	return f
}

// nopAlerter swallows alerts
type nopAlerter struct{}

func (nopAlerter) FeatureCompleted(*feature.Feature)                {}
func (nopAlerter) SessionHandoff(*feature.Feature, float64, string) {}
func (nopAlerter) FatalError(session.ErrorCategory, string)         {}
func (nopAlerter) Warning(string)                                   {}

// fakeGit is an in-memory GitOperations
type fakeGit struct {
	isRepo  bool
	commits []string
	staged  bool
}

func (g *fakeGit) IsGitRepo() bool { return g.isRepo }

func (g *fakeGit) GetStatus(ctx context.Context) (*output.GitStatus, error) {
	return &output.GitStatus{Branch: "main", HasChanges: g.staged}, nil
}

func (g *fakeGit) StageAll(ctx context.Context) error {
	g.staged = true
	return nil
}

func (g *fakeGit) Commit(ctx context.Context, message string, allowEmpty bool) (string, error) {
	if !g.staged && !allowEmpty {
		return "", nil
	}
	g.commits = append(g.commits, message)
	g.staged = false
	return "abc123def456abc123def456abc123def456abcd", nil
}

func (g *fakeGit) GetChangedFiles(ctx context.Context, since string) ([]string, error) {
	return nil, nil
}

// agentOutput builds a response carrying the structured status markers
func agentOutput(status string, contextPct float64, notes string) *output.AgentResponse {
	out := "work log...\n"
	if status != "" {
		out += "STATUS: " + status + "\n"
	}
	if contextPct > 0 {
		out += "CONTEXT_USAGE: " + strconv.FormatFloat(contextPct, 'f', -1, 64) + "%\n"
	}
	if notes != "" {
		out += "HANDOFF_NOTES: " + notes + "\n"
	}
	return &output.AgentResponse{Output: out, InputTokens: 100, OutputTokens: 50, CostUSD: 0.05}
}
