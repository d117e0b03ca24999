package feature

import (
	"fmt"
	"time"

	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
)

// Status represents the lifecycle state of a feature
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Feature is a single unit of work in the backlog.
// Features are never deleted, only transitioned between statuses.
type Feature struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	// Priority orders feature selection; higher means more urgent.
	Priority int `json:"priority"`

	// DependsOn lists feature IDs that must be completed before this
	// feature becomes eligible for selection.
	DependsOn []string `json:"depends_on,omitempty"`

	// SessionsSpent counts how many agent sessions have worked on this
	// feature, incremented each time a session starts.
	SessionsSpent int `json:"sessions_spent"`

	// QualityGates overrides the harness-default gates field-by-field
	// when set (see gate.Merge).
	QualityGates *gate.QualityGates `json:"quality_gates,omitempty"`

	// ModelOverride forces a specific agent model for this feature.
	ModelOverride string `json:"model_override,omitempty"`

	AcceptanceCriteria  []string `json:"acceptance_criteria,omitempty"`
	ImplementationNotes []string `json:"implementation_notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewFeature creates a pending feature with the given id, title, and priority
func NewFeature(id, title string, priority int) (*Feature, error) {
	if id == "" {
		return nil, fmt.Errorf("feature id must not be empty")
	}
	if title == "" {
		return nil, fmt.Errorf("feature title must not be empty")
	}

	return &Feature{
		ID:        id,
		Title:     title,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MarkStarted transitions the feature to in_progress and counts the session
func (f *Feature) MarkStarted() {
	if f.Status == StatusPending {
		now := time.Now().UTC()
		f.StartedAt = &now
	}
	f.Status = StatusInProgress
	f.SessionsSpent++
}

// MarkCompleted transitions the feature to completed
func (f *Feature) MarkCompleted() {
	now := time.Now().UTC()
	f.Status = StatusCompleted
	f.CompletedAt = &now
}

// MarkBlocked transitions the feature to blocked
func (f *Feature) MarkBlocked() {
	f.Status = StatusBlocked
}

// AddImplementationNote appends a note to the feature's running log.
// Notes are append-only; existing notes are never rewritten.
func (f *Feature) AddImplementationNote(note string) {
	if note == "" {
		return
	}
	f.ImplementationNotes = append(f.ImplementationNotes, note)
}

// IsEligible reports whether the feature can be worked on given the set
// of completed feature IDs. Completed and blocked features are never
// eligible.
func (f *Feature) IsEligible(completed map[string]bool) bool {
	if f.Status != StatusPending && f.Status != StatusInProgress {
		return false
	}
	for _, dep := range f.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}
