package orchestrate

import (
	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
)

// Alerter surfaces notable harness events to an operator channel. The
// default implementation logs; a dashboard or webhook sink can replace it.
type Alerter interface {
	FeatureCompleted(f *feature.Feature)
	SessionHandoff(f *feature.Feature, contextUsage float64, notes string)
	FatalError(category session.ErrorCategory, message string)
	Warning(message string)
}

// LogAlerter emits alerts through the application logger
type LogAlerter struct{}

func (LogAlerter) FeatureCompleted(f *feature.Feature) {
	app.GetLogger().Info("feature completed: %s (%s) after %d session(s)", f.ID, f.Title, f.SessionsSpent)
}

func (LogAlerter) SessionHandoff(f *feature.Feature, contextUsage float64, notes string) {
	app.GetLogger().Info("handoff on %s at %.1f%% context: %s", f.ID, contextUsage, notes)
}

func (LogAlerter) FatalError(category session.ErrorCategory, message string) {
	app.GetLogger().Error("fatal %s error, halting: %s", category, message)
}

func (LogAlerter) Warning(message string) {
	app.GetLogger().Warn("%s", message)
}
