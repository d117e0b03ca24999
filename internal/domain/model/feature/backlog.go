package feature

import (
	"fmt"
)

// Backlog is the ordered set of features a project wants implemented.
// Slice order is registration order and serves as the final tie-breaker
// during selection.
type Backlog struct {
	ProjectName string     `json:"project_name"`
	ProjectPath string     `json:"project_path"`
	Features    []*Feature `json:"features"`
}

// NewBacklog creates an empty backlog for a project
func NewBacklog(projectName, projectPath string) *Backlog {
	return &Backlog{
		ProjectName: projectName,
		ProjectPath: projectPath,
		Features:    []*Feature{},
	}
}

// AddFeature appends a feature, rejecting duplicate IDs
func (b *Backlog) AddFeature(f *Feature) error {
	if f == nil {
		return fmt.Errorf("feature must not be nil")
	}
	if b.FindFeature(f.ID) != nil {
		return fmt.Errorf("duplicate feature id: %s", f.ID)
	}
	b.Features = append(b.Features, f)
	return nil
}

// FindFeature returns the feature with the given id, or nil
func (b *Backlog) FindFeature(id string) *Feature {
	for _, f := range b.Features {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// completedSet returns the set of completed feature IDs
func (b *Backlog) completedSet() map[string]bool {
	done := make(map[string]bool)
	for _, f := range b.Features {
		if f.Status == StatusCompleted {
			done[f.ID] = true
		}
	}
	return done
}

// GetNextFeature selects the feature to work on next: the highest-priority
// eligible feature, preferring in_progress over pending at equal priority
// so partial work is finished before new work starts. Registration order
// breaks remaining ties. Returns nil when nothing is eligible.
func (b *Backlog) GetNextFeature() *Feature {
	done := b.completedSet()

	var best *Feature
	for _, f := range b.Features {
		if !f.IsEligible(done) {
			continue
		}
		if best == nil || preferOver(f, best) {
			best = f
		}
	}
	return best
}

// preferOver reports whether candidate should be selected instead of current
func preferOver(candidate, current *Feature) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	if candidate.Status != current.Status {
		return candidate.Status == StatusInProgress
	}
	return false
}

// IsComplete reports whether every feature in the backlog is completed.
// An empty backlog is considered complete.
func (b *Backlog) IsComplete() bool {
	for _, f := range b.Features {
		if f.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// CountByStatus returns feature counts grouped by status
func (b *Backlog) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, f := range b.Features {
		counts[f.Status]++
	}
	return counts
}

// MarkFeatureStarted marks the feature with the given id as started
func (b *Backlog) MarkFeatureStarted(id string) error {
	f := b.FindFeature(id)
	if f == nil {
		return fmt.Errorf("feature not found: %s", id)
	}
	f.MarkStarted()
	return nil
}

// MarkFeatureCompleted marks the feature with the given id as completed
func (b *Backlog) MarkFeatureCompleted(id string) error {
	f := b.FindFeature(id)
	if f == nil {
		return fmt.Errorf("feature not found: %s", id)
	}
	f.MarkCompleted()
	return nil
}

// AddImplementationNote appends a note to the feature with the given id
func (b *Backlog) AddImplementationNote(id, note string) error {
	f := b.FindFeature(id)
	if f == nil {
		return fmt.Errorf("feature not found: %s", id)
	}
	f.AddImplementationNote(note)
	return nil
}

// Validate checks structural invariants: valid statuses, unique IDs, and
// dependencies that reference known features.
func (b *Backlog) Validate() error {
	seen := make(map[string]bool)
	for _, f := range b.Features {
		if f.ID == "" {
			return fmt.Errorf("feature with empty id")
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate feature id: %s", f.ID)
		}
		seen[f.ID] = true
		if !f.Status.IsValid() {
			return fmt.Errorf("feature %s has invalid status %q", f.ID, f.Status)
		}
	}
	for _, f := range b.Features {
		for _, dep := range f.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("feature %s depends on unknown feature %s", f.ID, dep)
			}
			if dep == f.ID {
				return fmt.Errorf("feature %s depends on itself", f.ID)
			}
		}
	}
	return nil
}
