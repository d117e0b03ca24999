package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/adapter/gateway/agent"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/domain/service/retry"
)

func TestRunCodingSession_Complete(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{Response: agentOutput("COMPLETE", 40, "")})
	o := env.newOrchestrator(t, gw, nil, nil)

	result, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.FeatureCompleted)

	// backlog persisted with the feature completed
	loaded, err := env.backlogs.Load()
	require.NoError(t, err)
	assert.Equal(t, feature.StatusCompleted, loaded.FindFeature("feat-001").Status)

	// recovery state cleared on clean completion
	state, err := env.states.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	// one SUCCESS history record with usage carried over
	records, err := env.history.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, session.OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, 100, records[0].InputTokens)
}

func TestRunCodingSession_ConfiguredHeavyModelUpgrades(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{HeavyModel: "claude-opus-4-5"})
	f := newFeature(t, "feat-001", 5)
	f.Description = strings.Repeat("the concurrency refactor touches every layer of the architecture. ", 10)
	f.SessionsSpent = 3
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{Response: agentOutput("COMPLETE", 40, "")})
	// nil selector: the orchestrator builds one from the config
	o := env.newOrchestrator(t, gw, nil, nil)

	_, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)
	require.Len(t, gw.Calls(), 1)
	assert.Equal(t, "claude-opus-4-5", gw.Calls()[0].Model)
}

func TestRunCodingSession_Handoff(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)
	git := &fakeGit{isRepo: true, staged: false}

	gw := agent.NewMockGateway(agent.MockResponse{
		Response: agentOutput("HANDOFF", 88, "wire the session store next"),
	})
	o := env.newOrchestrator(t, gw, git, nil)

	result, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.True(t, result.HandoffRequested)
	assert.False(t, result.Success)
	assert.Equal(t, 88.0, result.ContextUsagePercent)

	// the feature stays in_progress, never completed or blocked
	loaded, err := env.backlogs.Load()
	require.NoError(t, err)
	assert.Equal(t, feature.StatusInProgress, loaded.FindFeature("feat-001").Status)

	// recovery state carries the handoff notes
	state, err := env.states.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "feat-001", state.CurrentFeatureID)
	assert.Equal(t, "wire the session store next", state.HandoffNotes)

	records, err := env.history.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, session.OutcomeHandoff, records[0].Outcome)
}

func TestRunCodingSession_HandoffNotesFlowIntoNextPrompt(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(
		agent.MockResponse{Response: agentOutput("HANDOFF", 90, "finish the retry wiring")},
		agent.MockResponse{Response: agentOutput("COMPLETE", 30, "")},
	)
	o := env.newOrchestrator(t, gw, nil, nil)

	_, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)
	_, err = o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)

	calls := gw.Calls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0].Prompt, "finish the retry wiring")
	assert.Contains(t, calls[1].Prompt, "finish the retry wiring")
}

func TestRunCodingSession_ContextThresholdForcesHandoff(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{HandoffThresholdPercent: 85})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	// context over threshold but no STATUS marker
	gw := agent.NewMockGateway(agent.MockResponse{Response: agentOutput("", 91, "")})
	o := env.newOrchestrator(t, gw, nil, nil)

	result, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.True(t, result.HandoffRequested)
}

func TestRunCodingSession_ExecutionErrorClassified(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{Err: fmt.Errorf("API error (429): rate limit exceeded")})
	o := env.newOrchestrator(t, gw, nil, nil)

	result, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, session.CategoryRateLimit, result.ErrorCategory)

	records, err := env.history.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, session.OutcomeFailure, records[0].Outcome)
}

func TestRunCodingSession_TimeoutOutcome(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{Err: fmt.Errorf("session timed out after 30m")})
	o := env.newOrchestrator(t, gw, nil, nil)

	_, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)

	records, err := env.history.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, session.OutcomeTimeout, records[0].Outcome)
}

func TestRunCodingSessionWithRetry_TransientThenSuccess(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(
		agent.MockResponse{Err: fmt.Errorf("connection reset by peer")},
		agent.MockResponse{Response: agentOutput("COMPLETE", 20, "")},
	)
	o := env.newOrchestrator(t, gw, nil, nil)

	result, err := o.RunCodingSessionWithRetry(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, gw.Calls(), 2)
}

func TestRunCodingSessionWithRetry_HandoffNeverRetried(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{
		Response: agentOutput("HANDOFF", 90, "keep going"),
	})
	o := env.newOrchestrator(t, gw, nil, nil)

	result, err := o.RunCodingSessionWithRetry(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.True(t, result.HandoffRequested)
	assert.Len(t, gw.Calls(), 1)

	loaded, err := env.backlogs.Load()
	require.NoError(t, err)
	assert.Equal(t, feature.StatusInProgress, loaded.FindFeature("feat-001").Status)
}

func TestRunCodingSessionWithRetry_FatalNotRetried(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{Err: fmt.Errorf("credit balance too low")})
	o := env.newOrchestrator(t, gw, nil, nil)

	result, err := o.RunCodingSessionWithRetry(context.Background(), f, backlog)
	require.NoError(t, err)
	assert.Equal(t, session.CategoryBilling, result.ErrorCategory)
	assert.Len(t, gw.Calls(), 1)
}

// memArchive captures archived artifacts for assertions
type memArchive struct {
	saved []output.SaveArtifactRequest
}

func (a *memArchive) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	a.saved = append(a.saved, req)
	return &output.ArtifactMetadata{ID: "art-1", FeatureID: req.FeatureID}, nil
}

func (a *memArchive) LoadArtifact(ctx context.Context, featureID, artifactID string) (*output.Artifact, error) {
	return nil, fmt.Errorf("artifact not found: %s/%s", featureID, artifactID)
}

func (a *memArchive) ListArtifacts(ctx context.Context, featureID string) ([]*output.ArtifactMetadata, error) {
	return nil, nil
}

func TestRunCodingSession_ArchivesTranscript(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	f := newFeature(t, "feat-001", 5)
	backlog := env.seedBacklog(t, f)

	gw := agent.NewMockGateway(agent.MockResponse{Response: agentOutput("COMPLETE", 40, "")})
	o := env.newOrchestrator(t, gw, nil, nil)
	archive := &memArchive{}
	o.SetArchiveGateway(archive)

	_, err := o.RunCodingSession(context.Background(), f, backlog)
	require.NoError(t, err)

	require.Len(t, archive.saved, 1)
	assert.Equal(t, "feat-001", archive.saved[0].FeatureID)
	assert.Equal(t, output.ArtifactTypeTranscript, archive.saved[0].ArtifactType)
	assert.Contains(t, string(archive.saved[0].Content), "STATUS: COMPLETE")
}

func TestParseSessionOutput_MarkerVariants(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{HandoffThresholdPercent: 85})
	o := env.newOrchestrator(t, agent.NewMockGateway(), nil, nil)

	tests := []struct {
		name        string
		out         string
		wantSuccess bool
		wantHandoff bool
	}{
		{"complete", "did things\nSTATUS: COMPLETE\nCONTEXT_USAGE: 40%", true, false},
		{"handoff", "STATUS: HANDOFF\nCONTEXT_USAGE: 87%\nHANDOFF_NOTES: next steps", false, true},
		{"continue treated as handoff", "STATUS: CONTINUE\nCONTEXT_USAGE: 50%", false, true},
		{"lowercase marker", "status: complete", true, false},
		{"prose mention does not count", "I will set STATUS: COMPLETE later on this line", false, false},
		{"no marker low context", "just some prose", false, false},
		{"no marker high context", "CONTEXT_USAGE: 92%", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := o.parseSessionOutput("S-1", &output.AgentResponse{Output: tt.out})
			assert.Equal(t, tt.wantSuccess, result.Success, "success")
			assert.Equal(t, tt.wantHandoff, result.HandoffRequested, "handoff")
		})
	}
}

func TestParseSessionOutput_NoMarkerIsUnknownError(t *testing.T) {
	env := newTestEnv(t, appconfig.Params{})
	o := env.newOrchestrator(t, agent.NewMockGateway(), nil, nil)

	result := o.parseSessionOutput("S-1", &output.AgentResponse{Output: "rambling with no markers"})
	assert.False(t, result.Success)
	assert.False(t, result.HandoffRequested)
	assert.Equal(t, session.CategoryUnknown, result.ErrorCategory)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestRetryPolicyIntegration_UnknownSingleRetry(t *testing.T) {
	cfg := retry.DefaultConfig()
	policy := retry.NewPolicyWithSeed(cfg, 1)

	result := &session.Result{ErrorCategory: session.CategoryUnknown, ErrorMessage: "mystery"}
	assert.True(t, policy.ShouldRetry(result, 0))
	assert.False(t, policy.ShouldRetry(result, 1))
}
