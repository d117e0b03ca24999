package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// DefaultProgressLogMaxBytes is the rotation threshold for progress.log
const DefaultProgressLogMaxBytes = 5 * 1024 * 1024

// ProgressEvent is one NDJSON line in the progress log
type ProgressEvent struct {
	TS        string  `json:"ts"`
	Event     string  `json:"event"`
	SessionID string  `json:"session_id,omitempty"`
	FeatureID string  `json:"feature_id,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Context   float64 `json:"context_usage_percent,omitempty"`
}

// ProgressLog is the human-scannable NDJSON activity log. Lines are only
// ever appended; when the file exceeds maxBytes it is rotated once to
// <path>.1 and a fresh log is started.
type ProgressLog struct {
	fs       afero.Fs
	path     string
	maxBytes int64
}

// NewProgressLog creates a progress log at path with the default rotation
// threshold
func NewProgressLog(fs afero.Fs, path string) *ProgressLog {
	return &ProgressLog{fs: fs, path: path, maxBytes: DefaultProgressLogMaxBytes}
}

// NewProgressLogWithLimit overrides the rotation threshold, used by tests
func NewProgressLogWithLimit(fs afero.Fs, path string, maxBytes int64) *ProgressLog {
	return &ProgressLog{fs: fs, path: path, maxBytes: maxBytes}
}

// Append writes one event line, rotating first when the log is full
func (l *ProgressLog) Append(event ProgressEvent) error {
	if event.TS == "" {
		event.TS = time.Now().UTC().Format(time.RFC3339)
	}

	if err := l.rotateIfNeeded(); err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}

	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open progress log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append progress log: %w", err)
	}
	return nil
}

// ReadRecent returns the last n events, oldest first
func (l *ProgressLog) ReadRecent(n int) ([]ProgressEvent, error) {
	f, err := l.fs.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open progress log: %w", err)
	}
	defer f.Close()

	var events []ProgressEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev ProgressEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue // tolerate a torn final line
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan progress log: %w", err)
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// SessionStarted logs the beginning of an agent session
func (l *ProgressLog) SessionStarted(sessionID, featureID string) error {
	return l.Append(ProgressEvent{Event: "session_started", SessionID: sessionID, FeatureID: featureID})
}

// SessionHandoff logs a context-pressure handoff
func (l *ProgressLog) SessionHandoff(sessionID, featureID string, contextUsage float64, notes string) error {
	return l.Append(ProgressEvent{
		Event:     "session_handoff",
		SessionID: sessionID,
		FeatureID: featureID,
		Context:   contextUsage,
		Detail:    notes,
	})
}

// FeatureCompleted logs a verified feature completion
func (l *ProgressLog) FeatureCompleted(sessionID, featureID string) error {
	return l.Append(ProgressEvent{Event: "feature_completed", SessionID: sessionID, FeatureID: featureID})
}

// SessionFailed logs a failed session with its error detail
func (l *ProgressLog) SessionFailed(sessionID, featureID, detail string) error {
	return l.Append(ProgressEvent{Event: "session_failed", SessionID: sessionID, FeatureID: featureID, Detail: detail})
}

// rotateIfNeeded renames the log to <path>.1 once it exceeds maxBytes
func (l *ProgressLog) rotateIfNeeded() error {
	info, err := l.fs.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat progress log: %w", err)
	}
	if info.Size() < l.maxBytes {
		return nil
	}

	rotated := l.path + ".1"
	l.fs.Remove(rotated)
	if err := l.fs.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate progress log: %w", err)
	}
	return nil
}
