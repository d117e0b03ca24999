package orchestrate

import (
	"strings"

	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
)

// ModelSelector chooses the model for a feature's next session
type ModelSelector interface {
	Select(f *feature.Feature) string
}

// ComplexityModelSelector scores a feature's apparent complexity and
// upgrades to the heavy model above a threshold. An explicit per-feature
// override always wins.
type ComplexityModelSelector struct {
	defaultModel string
	heavyModel   string
}

// NewComplexityModelSelector creates a selector between two models. An
// empty heavyModel disables upgrading.
func NewComplexityModelSelector(defaultModel, heavyModel string) *ComplexityModelSelector {
	return &ComplexityModelSelector{defaultModel: defaultModel, heavyModel: heavyModel}
}

const complexityUpgradeThreshold = 6

// Select returns the model for the feature's next session
func (s *ComplexityModelSelector) Select(f *feature.Feature) string {
	if f.ModelOverride != "" {
		return f.ModelOverride
	}
	if s.heavyModel != "" && s.score(f) >= complexityUpgradeThreshold {
		return s.heavyModel
	}
	return s.defaultModel
}

// score is a coarse heuristic: long descriptions, many acceptance
// criteria, many dependencies, and repeated sessions all hint at a
// feature the default model is struggling with.
func (s *ComplexityModelSelector) score(f *feature.Feature) int {
	score := 0
	if len(f.Description) > 500 {
		score += 2
	} else if len(f.Description) > 200 {
		score++
	}
	score += len(f.AcceptanceCriteria) / 2
	score += len(f.DependsOn)
	if f.SessionsSpent >= 3 {
		score += 2
	}
	for _, hint := range []string{"refactor", "architecture", "migration", "concurrency"} {
		if strings.Contains(strings.ToLower(f.Description), hint) {
			score++
		}
	}
	return score
}
