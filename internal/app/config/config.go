package config

import (
	"time"

	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
	"github.com/forgeloop/forgeloop/internal/domain/service/retry"
)

// Config provides read-only access to harness configuration. It abstracts
// the configuration source (YAML file, ENV, defaults) so the application
// layer does not depend on how settings are loaded.
type Config interface {
	// Core settings
	Home() string        // Base directory (FORGELOOP_HOME)
	ProjectName() string // Project display name
	ProjectPath() string // Root of the project being worked on

	// Agent settings
	AgentMode() string             // "cli" or "api", fixed at configuration time
	AgentBin() string              // Agent binary for CLI mode (FORGELOOP_AGENT_BIN)
	Model() string                 // Default model identifier
	HeavyModel() string            // Model for complex features (empty disables upgrading)
	APIKey() string                // API key for API mode (ANTHROPIC_API_KEY)
	SessionTimeout() time.Duration // Per-session execution timeout

	// Orchestration settings
	HandoffThresholdPercent() float64 // Context usage percent that triggers handoff
	Interval() time.Duration          // Pause between sessions
	MaxSessions() int                 // Safety cap on sessions per run (0 = unlimited)

	// Completion policy
	Retry() retry.Config                  // Retry/backoff parameters
	DefaultGates() *gate.QualityGates     // Harness-default quality gates
	Verification() *gate.VerificationConfig // Full verification pipeline (nil = legacy gates path)
	TestWarningGraceCompletions() int     // Completions allowed before missing-test warning

	// Archival
	ArchiveMode() string // "", "local", or "s3"
	S3Bucket() string
	S3Prefix() string
	S3Region() string

	// Health checks
	MinDiskSpaceMB() int64 // Fatal-to-start threshold for free disk space

	// Logging
	StderrLevel() string // Minimum stderr log level

	// Metadata
	ConfigSource() string // "yaml", "env", or "default"
	SettingPath() string  // Path to config.yaml if loaded from file
}

// Params holds the values used to build an AppConfig
type Params struct {
	Home        string
	ProjectName string
	ProjectPath string

	AgentMode      string
	AgentBin       string
	Model          string
	HeavyModel     string
	APIKey         string
	SessionTimeout time.Duration

	HandoffThresholdPercent float64
	Interval                time.Duration
	MaxSessions             int

	Retry                       retry.Config
	DefaultGates                *gate.QualityGates
	Verification                *gate.VerificationConfig
	TestWarningGraceCompletions int

	ArchiveMode string
	S3Bucket    string
	S3Prefix    string
	S3Region    string

	MinDiskSpaceMB int64
	StderrLevel    string

	ConfigSource string
	SettingPath  string
}

// AppConfig is the concrete implementation of Config
type AppConfig struct {
	p Params
}

// NewAppConfig creates a config from resolved parameters
func NewAppConfig(p Params) *AppConfig {
	return &AppConfig{p: p}
}

func (c *AppConfig) Home() string        { return c.p.Home }
func (c *AppConfig) ProjectName() string { return c.p.ProjectName }
func (c *AppConfig) ProjectPath() string { return c.p.ProjectPath }

func (c *AppConfig) AgentMode() string             { return c.p.AgentMode }
func (c *AppConfig) AgentBin() string              { return c.p.AgentBin }
func (c *AppConfig) Model() string                 { return c.p.Model }
func (c *AppConfig) HeavyModel() string            { return c.p.HeavyModel }
func (c *AppConfig) APIKey() string                { return c.p.APIKey }
func (c *AppConfig) SessionTimeout() time.Duration { return c.p.SessionTimeout }

func (c *AppConfig) HandoffThresholdPercent() float64 { return c.p.HandoffThresholdPercent }
func (c *AppConfig) Interval() time.Duration          { return c.p.Interval }
func (c *AppConfig) MaxSessions() int                 { return c.p.MaxSessions }

func (c *AppConfig) Retry() retry.Config                     { return c.p.Retry }
func (c *AppConfig) DefaultGates() *gate.QualityGates        { return c.p.DefaultGates }
func (c *AppConfig) Verification() *gate.VerificationConfig  { return c.p.Verification }
func (c *AppConfig) TestWarningGraceCompletions() int        { return c.p.TestWarningGraceCompletions }

func (c *AppConfig) ArchiveMode() string { return c.p.ArchiveMode }
func (c *AppConfig) S3Bucket() string    { return c.p.S3Bucket }
func (c *AppConfig) S3Prefix() string    { return c.p.S3Prefix }
func (c *AppConfig) S3Region() string    { return c.p.S3Region }

func (c *AppConfig) MinDiskSpaceMB() int64 { return c.p.MinDiskSpaceMB }
func (c *AppConfig) StderrLevel() string   { return c.p.StderrLevel }

func (c *AppConfig) ConfigSource() string { return c.p.ConfigSource }
func (c *AppConfig) SettingPath() string  { return c.p.SettingPath }
