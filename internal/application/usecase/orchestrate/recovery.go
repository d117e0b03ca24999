package orchestrate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

// RecoveryManager owns shutdown signaling and crash-recovery state. A
// shutdown can arrive two ways: an in-process signal (SIGINT/SIGTERM) or
// a stop-request marker file written by an external process such as a
// dashboard. Both are polled between sessions, never mid-session.
type RecoveryManager struct {
	fs       afero.Fs
	stopPath string
	states   *repository.SessionStateRepository
	git      output.GitOperations

	shutdownRequested atomic.Bool
	stopSignals       chan os.Signal
}

// NewRecoveryManager creates a recovery manager over the stop-marker path
// and session-state store
func NewRecoveryManager(fs afero.Fs, stopPath string, states *repository.SessionStateRepository, git output.GitOperations) *RecoveryManager {
	return &RecoveryManager{
		fs:       fs,
		stopPath: stopPath,
		states:   states,
		git:      git,
	}
}

// RegisterSignalHandler installs the SIGINT/SIGTERM flag setter. Call once
// at harness startup; Stop releases the handler.
func (m *RecoveryManager) RegisterSignalHandler() {
	m.stopSignals = make(chan os.Signal, 1)
	signal.Notify(m.stopSignals, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range m.stopSignals {
			m.shutdownRequested.Store(true)
		}
	}()
}

// Stop removes the signal handler and ends its goroutine
func (m *RecoveryManager) Stop() {
	if m.stopSignals != nil {
		signal.Stop(m.stopSignals)
		close(m.stopSignals)
		m.stopSignals = nil
	}
}

// RequestShutdown sets the in-process shutdown flag
func (m *RecoveryManager) RequestShutdown() {
	m.shutdownRequested.Store(true)
}

// IsShutdownRequested reports whether a signal arrived or the stop-request
// marker exists
func (m *RecoveryManager) IsShutdownRequested() bool {
	if m.shutdownRequested.Load() {
		return true
	}
	exists, _ := afero.Exists(m.fs, m.stopPath)
	return exists
}

// StopRequestReason returns the marker file content (ISO timestamp plus a
// free-text reason), or empty when absent
func (m *RecoveryManager) StopRequestReason() string {
	data, err := afero.ReadFile(m.fs, m.stopPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ClearStopRequest removes the marker once processed
func (m *RecoveryManager) ClearStopRequest() {
	m.fs.Remove(m.stopPath)
}

// GracefulShutdown checkpoints in-flight work: commits uncommitted changes,
// persists a recovery snapshot, and clears the stop marker. Every step is
// best-effort; a commit failure must not prevent state persistence. With no
// session in flight only the marker is consumed; a previously persisted
// handoff snapshot must survive to the next startup.
func (m *RecoveryManager) GracefulShutdown(ctx context.Context, sessionID string, f *feature.Feature, contextUsage float64, notes string) {
	logger := app.GetLogger()

	if sessionID == "" && f == nil {
		logger.Info("graceful shutdown complete")
		m.ClearStopRequest()
		return
	}

	var commitHash string
	if m.git != nil && m.git.IsGitRepo() {
		if err := m.git.StageAll(ctx); err != nil {
			logger.Warn("shutdown: stage failed: %v", err)
		} else {
			msg := "interrupted: work in progress"
			if f != nil {
				msg = fmt.Sprintf("interrupted: %s (work in progress)", f.Title)
			}
			hash, err := m.git.Commit(ctx, msg, false)
			if err != nil {
				logger.Warn("shutdown: commit failed: %v", err)
			} else if hash != "" {
				commitHash = hash
				logger.Info("shutdown: committed in-flight changes as %s", hash[:8])
			}
		}
	}

	state := &session.State{
		SessionID:           sessionID,
		ContextUsagePercent: contextUsage,
		LastCommitHash:      commitHash,
		HandoffNotes:        notes,
	}
	if f != nil {
		state.CurrentFeatureID = f.ID
	}
	if err := m.states.Save(state); err != nil {
		logger.Error("shutdown: persist session state failed: %v", err)
	}

	logger.Info("graceful shutdown complete")
	m.ClearStopRequest()
}

// CheckForRecovery inspects persisted session state at startup. A snapshot
// naming a feature is surfaced for automatic resumption; a stale snapshot
// with no feature is cleared rather than acted on.
func (m *RecoveryManager) CheckForRecovery() (string, error) {
	state, err := m.states.Load()
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", nil
	}
	if state.CurrentFeatureID == "" {
		app.GetLogger().Info("clearing stale session state from %s", state.UpdatedAt.Format("2006-01-02 15:04"))
		return "", m.states.Clear()
	}

	app.GetLogger().Info("recovering session %s on feature %s", state.SessionID, state.CurrentFeatureID)
	return state.CurrentFeatureID, nil
}
