package session

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrorCategory classifies an agent-session error for retry decisions
type ErrorCategory string

const (
	CategoryTransient ErrorCategory = "TRANSIENT"
	CategoryRateLimit ErrorCategory = "RATE_LIMIT"
	CategorySDKCrash  ErrorCategory = "SDK_CRASH"
	CategoryBilling   ErrorCategory = "BILLING"
	CategoryAuth      ErrorCategory = "AUTH"
	CategoryUnknown   ErrorCategory = "UNKNOWN"
)

// IsFatal reports whether the category always terminates the harness run
func (c ErrorCategory) IsFatal() bool {
	return c == CategoryBilling || c == CategoryAuth
}

// Outcome records how a session ended in the history log
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeTimeout Outcome = "TIMEOUT"
	OutcomeHandoff Outcome = "HANDOFF"
)

// UsageStats captures token and cost accounting for one session
type UsageStats struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Result is the outcome of a single agent invocation. It is produced once
// per session and is immutable after creation; the orchestrator consumes
// it to choose the next transition.
type Result struct {
	SessionID           string        `json:"session_id"`
	Success             bool          `json:"success"`
	HandoffRequested    bool          `json:"handoff_requested"`
	FeatureCompleted    bool          `json:"feature_completed"`
	ContextUsagePercent float64       `json:"context_usage_percent"`
	HandoffNotes        string        `json:"handoff_notes,omitempty"`
	ErrorMessage        string        `json:"error_message,omitempty"`
	ErrorCategory       ErrorCategory `json:"error_category,omitempty"`
	Usage               UsageStats    `json:"usage"`
	Duration            time.Duration `json:"duration"`
}

// State is the crash-recovery snapshot for the in-flight session. It is
// written before and during execution, read once at startup to offer
// resumption, and cleared on clean completion.
type State struct {
	SessionID           string    `json:"session_id"`
	CurrentFeatureID    string    `json:"current_feature_id"`
	ContextUsagePercent float64   `json:"context_usage_percent"`
	LastCommitHash      string    `json:"last_commit_hash,omitempty"`
	HandoffNotes        string    `json:"handoff_notes,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Record is an immutable historical log entry, one per completed, failed,
// or handed-off session.
type Record struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	FeatureID     string        `json:"feature_id"`
	Outcome       Outcome       `json:"outcome"`
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	CostUSD       float64       `json:"cost_usd"`
	CommitHash    string        `json:"commit_hash,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
}

// NewSessionID generates a session ID of the form S-<ULID>
func NewSessionID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return "S-" + id.String()
}

// NewRecord creates a history record for a finished session
func NewRecord(sessionID, featureID string, outcome Outcome, startedAt, endedAt time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		FeatureID: featureID,
		Outcome:   outcome,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}
}
