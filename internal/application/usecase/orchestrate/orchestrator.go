package orchestrate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forgeloop/forgeloop/internal/app"
	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/domain/service/retry"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

// Structured markers the agent emits at the end of its output. The prompt
// instructs the agent to report status this way; parsing is line-anchored
// so prose mentioning the keywords does not trigger transitions.
var (
	statusPattern       = regexp.MustCompile(`(?mi)^\s*STATUS:\s*(COMPLETE|HANDOFF|CONTINUE)\s*$`)
	contextUsagePattern = regexp.MustCompile(`(?mi)^\s*CONTEXT_USAGE:\s*([0-9]+(?:\.[0-9]+)?)\s*%?\s*$`)
	handoffNotesPattern = regexp.MustCompile(`(?mi)^\s*HANDOFF_NOTES:\s*(.+)$`)
)

// progressContextLines is how many recent progress entries are injected
// into each prompt
const progressContextLines = 15

// Orchestrator drives one coding session at a time through its state
// machine: select model, mark started, build prompt, run the agent,
// interpret the outcome, and route to completion or handoff.
type Orchestrator struct {
	cfg      appconfig.Config
	agent    output.AgentGateway
	git      output.GitOperations
	selector ModelSelector
	policy   *retry.Policy

	completion *CompletionHandler
	backlogs   *repository.BacklogRepository
	states     *repository.SessionStateRepository
	history    *repository.HistoryRepository
	progress   *repository.ProgressLog
	alerter    Alerter
	archive    output.ArchiveGateway

	// sleep is swapped in tests to avoid real backoff waits
	sleep func(time.Duration)
}

// NewOrchestrator wires the session state machine
func NewOrchestrator(
	cfg appconfig.Config,
	agent output.AgentGateway,
	git output.GitOperations,
	selector ModelSelector,
	policy *retry.Policy,
	completion *CompletionHandler,
	backlogs *repository.BacklogRepository,
	states *repository.SessionStateRepository,
	history *repository.HistoryRepository,
	progress *repository.ProgressLog,
	alerter Alerter,
) *Orchestrator {
	if alerter == nil {
		alerter = LogAlerter{}
	}
	if selector == nil {
		selector = NewComplexityModelSelector(cfg.Model(), cfg.HeavyModel())
	}
	return &Orchestrator{
		cfg:        cfg,
		agent:      agent,
		git:        git,
		selector:   selector,
		policy:     policy,
		completion: completion,
		backlogs:   backlogs,
		states:     states,
		history:    history,
		progress:   progress,
		alerter:    alerter,
		sleep:      time.Sleep,
	}
}

// RunCodingSessionWithRetry wraps RunCodingSession in the retry policy,
// sleeping the computed backoff between attempts. Success and handoff end
// the loop immediately; fatal categories are never retried.
func (o *Orchestrator) RunCodingSessionWithRetry(ctx context.Context, f *feature.Feature, backlog *feature.Backlog) (*session.Result, error) {
	for attempt := 0; ; attempt++ {
		result, err := o.RunCodingSession(ctx, f, backlog)
		if err != nil {
			return result, err
		}
		if result.Success || result.HandoffRequested {
			return result, nil
		}
		if !o.policy.ShouldRetry(result, attempt) {
			return result, nil
		}

		delay := o.policy.Delay(attempt)
		app.GetLogger().Warn("session failed (%s), retry %d/%d in %s: %s",
			result.ErrorCategory, attempt+1, o.policy.Config().MaxRetries, delay.Round(time.Second), result.ErrorMessage)
		o.progress.Append(repository.ProgressEvent{
			Event:     "session_retry",
			FeatureID: f.ID,
			Detail:    fmt.Sprintf("attempt %d, category %s, backoff %s", attempt+1, result.ErrorCategory, delay.Round(time.Second)),
		})
		o.sleep(delay)
	}
}

// RunCodingSession executes one agent session against a feature and
// routes its outcome.
func (o *Orchestrator) RunCodingSession(ctx context.Context, f *feature.Feature, backlog *feature.Backlog) (*session.Result, error) {
	sessionID := session.NewSessionID()
	model := o.selector.Select(f)
	startedAt := time.Now().UTC()

	// Carry handoff notes from the previous session on this feature into
	// the new snapshot and prompt before overwriting the state file.
	handoffNotes := ""
	if prev, err := o.states.Load(); err == nil && prev != nil && prev.CurrentFeatureID == f.ID {
		handoffNotes = prev.HandoffNotes
	}

	if err := backlog.MarkFeatureStarted(f.ID); err != nil {
		return nil, fmt.Errorf("mark started: %w", err)
	}
	if err := o.backlogs.Save(backlog); err != nil {
		return nil, fmt.Errorf("save backlog: %w", err)
	}
	if err := o.states.Save(&session.State{SessionID: sessionID, CurrentFeatureID: f.ID, HandoffNotes: handoffNotes}); err != nil {
		return nil, fmt.Errorf("persist session state: %w", err)
	}
	if err := o.progress.SessionStarted(sessionID, f.ID); err != nil {
		app.GetLogger().Warn("progress log: %v", err)
	}
	app.GetLogger().Info("session %s starting on %s (%s) with %s", sessionID, f.ID, f.Title, model)

	prompt := o.buildPrompt(f, handoffNotes)
	resp, err := o.agent.Execute(ctx, output.AgentRequest{
		Prompt:     prompt,
		Model:      model,
		WorkingDir: o.cfg.ProjectPath(),
		Timeout:    o.cfg.SessionTimeout(),
	})

	var result *session.Result
	if err != nil {
		result = &session.Result{
			SessionID:     sessionID,
			ErrorMessage:  err.Error(),
			ErrorCategory: retry.Classify(err.Error()),
		}
	} else {
		result = o.parseSessionOutput(sessionID, resp)
		o.archiveTranscript(ctx, sessionID, f.ID, model, resp)
	}
	result.Duration = time.Since(startedAt)

	switch {
	case result.HandoffRequested:
		if err := o.handleHandoff(ctx, sessionID, f, result, startedAt); err != nil {
			return result, err
		}
	case result.Success:
		completed, err := o.completion.CompleteFeature(ctx, sessionID, f, result, backlog)
		if err != nil {
			return result, err
		}
		result.FeatureCompleted = completed
		if !completed {
			// validation rejected the claim; treat as a failed session
			result.Success = false
			result.ErrorMessage = "completion claim rejected by validation"
		}
	default:
		o.recordFailedSession(sessionID, f, result, startedAt)
	}

	return result, nil
}

// SetArchiveGateway enables transcript archival. Sessions run fine
// without one; archival is best-effort.
func (o *Orchestrator) SetArchiveGateway(gw output.ArchiveGateway) {
	o.archive = gw
}

// archiveTranscript stores the raw agent output for later inspection
func (o *Orchestrator) archiveTranscript(ctx context.Context, sessionID, featureID, model string, resp *output.AgentResponse) {
	if o.archive == nil {
		return
	}
	_, err := o.archive.SaveArtifact(ctx, output.SaveArtifactRequest{
		FeatureID:    featureID,
		SessionID:    sessionID,
		ArtifactType: output.ArtifactTypeTranscript,
		Content:      []byte(resp.Output),
		ContentType:  "text/plain",
		Metadata:     map[string]string{"model": model},
	})
	if err != nil {
		app.GetLogger().Warn("archive transcript: %v", err)
	}
}

// handleHandoff checkpoints a context-pressure handoff: commit pending
// work, persist recovery state with the agent's notes, record history,
// and alert. The feature stays in_progress so the next loop iteration
// resumes it.
func (o *Orchestrator) handleHandoff(ctx context.Context, sessionID string, f *feature.Feature, result *session.Result, startedAt time.Time) error {
	var commitHash string
	if o.git != nil && o.git.IsGitRepo() {
		if err := o.git.StageAll(ctx); err == nil {
			msg := fmt.Sprintf("checkpoint: %s (handoff at %.0f%% context)", f.Title, result.ContextUsagePercent)
			if hash, err := o.git.Commit(ctx, msg, false); err == nil && hash != "" {
				commitHash = hash
			}
		}
	}

	state := &session.State{
		SessionID:           sessionID,
		CurrentFeatureID:    f.ID,
		ContextUsagePercent: result.ContextUsagePercent,
		LastCommitHash:      commitHash,
		HandoffNotes:        result.HandoffNotes,
	}
	if err := o.states.Save(state); err != nil {
		return fmt.Errorf("persist handoff state: %w", err)
	}

	record := session.NewRecord(sessionID, f.ID, session.OutcomeHandoff, startedAt, time.Now().UTC())
	record.InputTokens = result.Usage.InputTokens
	record.OutputTokens = result.Usage.OutputTokens
	record.CostUSD = result.Usage.CostUSD
	record.CommitHash = commitHash
	if err := o.history.Append(record); err != nil {
		return fmt.Errorf("record handoff: %w", err)
	}

	if err := o.progress.SessionHandoff(sessionID, f.ID, result.ContextUsagePercent, result.HandoffNotes); err != nil {
		app.GetLogger().Warn("progress log: %v", err)
	}
	o.alerter.SessionHandoff(f, result.ContextUsagePercent, result.HandoffNotes)
	return nil
}

// recordFailedSession logs a FAILURE or TIMEOUT history entry
func (o *Orchestrator) recordFailedSession(sessionID string, f *feature.Feature, result *session.Result, startedAt time.Time) {
	outcome := session.OutcomeFailure
	lower := strings.ToLower(result.ErrorMessage)
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") {
		outcome = session.OutcomeTimeout
	}

	record := session.NewRecord(sessionID, f.ID, outcome, startedAt, time.Now().UTC())
	record.ErrorMessage = result.ErrorMessage
	record.ErrorCategory = result.ErrorCategory
	record.InputTokens = result.Usage.InputTokens
	record.OutputTokens = result.Usage.OutputTokens
	record.CostUSD = result.Usage.CostUSD
	if err := o.history.Append(record); err != nil {
		app.GetLogger().Warn("record failure: %v", err)
	}
	if err := o.progress.SessionFailed(sessionID, f.ID, result.ErrorMessage); err != nil {
		app.GetLogger().Warn("progress log: %v", err)
	}
}

// parseSessionOutput maps the agent's structured markers onto a Result.
// No STATUS marker means the session neither finished nor asked for a
// handoff; crossing the context threshold forces a handoff regardless.
func (o *Orchestrator) parseSessionOutput(sessionID string, resp *output.AgentResponse) *session.Result {
	result := &session.Result{
		SessionID: sessionID,
		Usage: session.UsageStats{
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			CostUSD:      resp.CostUSD,
		},
	}

	if m := contextUsagePattern.FindStringSubmatch(resp.Output); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.ContextUsagePercent = pct
		}
	}
	if m := handoffNotesPattern.FindStringSubmatch(resp.Output); m != nil {
		result.HandoffNotes = strings.TrimSpace(m[1])
	}

	status := ""
	if m := statusPattern.FindStringSubmatch(resp.Output); m != nil {
		status = strings.ToUpper(m[1])
	}

	switch status {
	case "COMPLETE":
		result.Success = true
		result.FeatureCompleted = true
	case "HANDOFF", "CONTINUE":
		result.HandoffRequested = true
	default:
		if result.ContextUsagePercent >= o.cfg.HandoffThresholdPercent() && result.ContextUsagePercent > 0 {
			result.HandoffRequested = true
		} else {
			result.ErrorMessage = "session ended without a status marker"
			result.ErrorCategory = session.CategoryUnknown
		}
	}
	return result
}

// buildPrompt assembles the session prompt from the feature and rolling
// progress context
func (o *Orchestrator) buildPrompt(f *feature.Feature, handoffNotes string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are continuing autonomous work on project %q.\n\n", o.cfg.ProjectName())
	fmt.Fprintf(&b, "## Current feature\nID: %s\nTitle: %s\n", f.ID, f.Title)
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	if len(f.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, c := range f.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(f.ImplementationNotes) > 0 {
		b.WriteString("\n## Notes from previous sessions\n")
		for _, n := range f.ImplementationNotes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	if handoffNotes != "" {
		fmt.Fprintf(&b, "\n## Handoff from the previous session\n%s\n", handoffNotes)
	}

	if events, err := o.progress.ReadRecent(progressContextLines); err == nil && len(events) > 0 {
		b.WriteString("\n## Recent activity\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "- %s %s %s %s\n", ev.TS, ev.Event, ev.FeatureID, ev.Detail)
		}
	}

	fmt.Fprintf(&b, `
## Instructions
Work on the feature above. Commit as you go. When you are done, or when
your context usage approaches %.0f%%, finish your reply with exactly these
markers on their own lines:

STATUS: COMPLETE | HANDOFF | CONTINUE
CONTEXT_USAGE: <percent>
HANDOFF_NOTES: <what remains and how to continue>

Use COMPLETE only when every acceptance criterion is met and tests pass.
`, o.cfg.HandoffThresholdPercent())

	return b.String()
}
