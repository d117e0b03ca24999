package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/domain/service/retry"
)

// settingsFile mirrors the etc/config.yaml document
type settingsFile struct {
	Project struct {
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"project"`

	Agent struct {
		Mode           string `yaml:"mode"`
		Bin            string `yaml:"bin"`
		Model          string `yaml:"model"`
		HeavyModel     string `yaml:"heavy_model"`
		SessionTimeout string `yaml:"session_timeout"`
	} `yaml:"agent"`

	Orchestration struct {
		HandoffThresholdPercent float64 `yaml:"handoff_threshold_percent"`
		Interval                string  `yaml:"interval"`
		MaxSessions             int     `yaml:"max_sessions"`
	} `yaml:"orchestration"`

	Retry struct {
		MaxRetries          int      `yaml:"max_retries"`
		BaseDelaySeconds    float64  `yaml:"base_delay_seconds"`
		MaxDelaySeconds     float64  `yaml:"max_delay_seconds"`
		ExponentialBase     float64  `yaml:"exponential_base"`
		JitterFactor        float64  `yaml:"jitter_factor"`
		RetryableCategories []string `yaml:"retryable_categories"`
	} `yaml:"retry"`

	QualityGates *gate.QualityGates `yaml:"quality_gates"`

	Verification *gate.VerificationConfig `yaml:"verification"`

	Completion struct {
		TestWarningGraceCompletions int `yaml:"test_warning_grace_completions"`
	} `yaml:"completion"`

	Archive struct {
		Mode     string `yaml:"mode"`
		S3Bucket string `yaml:"s3_bucket"`
		S3Prefix string `yaml:"s3_prefix"`
		S3Region string `yaml:"s3_region"`
	} `yaml:"archive"`

	Health struct {
		MinDiskSpaceMB int64 `yaml:"min_disk_space_mb"`
	} `yaml:"health"`

	Log struct {
		StderrLevel string `yaml:"stderr_level"`
	} `yaml:"log"`
}

// LoadSettings loads configuration for the given home directory.
// Priority: etc/config.yaml > environment variables > defaults.
func LoadSettings(home string) (appconfig.Config, error) {
	params := defaultParams(home)
	source := "default"
	settingPath := filepath.Join(home, "etc", "config.yaml")

	data, err := os.ReadFile(settingPath)
	switch {
	case err == nil:
		var sf settingsFile
		if err := yaml.Unmarshal(data, &sf); err != nil {
			return nil, fmt.Errorf("parse %s: %w", settingPath, err)
		}
		applySettings(&params, &sf)
		source = "yaml"
	case os.IsNotExist(err):
		// Fall through to env/defaults
	default:
		return nil, fmt.Errorf("read %s: %w", settingPath, err)
	}

	if applyEnv(&params) && source == "default" {
		source = "env"
	}

	params.ConfigSource = source
	if source == "yaml" {
		params.SettingPath = settingPath
	}
	return appconfig.NewAppConfig(params), nil
}

func defaultParams(home string) appconfig.Params {
	return appconfig.Params{
		Home:                        home,
		ProjectPath:                 ".",
		AgentMode:                   "cli",
		AgentBin:                    "claude",
		Model:                       "claude-sonnet-4-5",
		SessionTimeout:              30 * time.Minute,
		HandoffThresholdPercent:     85,
		Interval:                    5 * time.Second,
		Retry:                       retry.DefaultConfig(),
		TestWarningGraceCompletions: 3,
		MinDiskSpaceMB:              500,
		StderrLevel:                 "info",
	}
}

func applySettings(params *appconfig.Params, sf *settingsFile) {
	if sf.Project.Name != "" {
		params.ProjectName = sf.Project.Name
	}
	if sf.Project.Path != "" {
		params.ProjectPath = sf.Project.Path
	}

	if sf.Agent.Mode != "" {
		params.AgentMode = sf.Agent.Mode
	}
	if sf.Agent.Bin != "" {
		params.AgentBin = sf.Agent.Bin
	}
	if sf.Agent.Model != "" {
		params.Model = sf.Agent.Model
	}
	if sf.Agent.HeavyModel != "" {
		params.HeavyModel = sf.Agent.HeavyModel
	}
	if d, err := time.ParseDuration(sf.Agent.SessionTimeout); err == nil && d > 0 {
		params.SessionTimeout = d
	}

	if sf.Orchestration.HandoffThresholdPercent > 0 {
		params.HandoffThresholdPercent = sf.Orchestration.HandoffThresholdPercent
	}
	if d, err := time.ParseDuration(sf.Orchestration.Interval); err == nil && d > 0 {
		params.Interval = d
	}
	if sf.Orchestration.MaxSessions > 0 {
		params.MaxSessions = sf.Orchestration.MaxSessions
	}

	if sf.Retry.MaxRetries > 0 {
		params.Retry.MaxRetries = sf.Retry.MaxRetries
	}
	if sf.Retry.BaseDelaySeconds > 0 {
		params.Retry.BaseDelaySeconds = sf.Retry.BaseDelaySeconds
	}
	if sf.Retry.MaxDelaySeconds > 0 {
		params.Retry.MaxDelaySeconds = sf.Retry.MaxDelaySeconds
	}
	if sf.Retry.ExponentialBase > 0 {
		params.Retry.ExponentialBase = sf.Retry.ExponentialBase
	}
	if sf.Retry.JitterFactor > 0 {
		params.Retry.JitterFactor = sf.Retry.JitterFactor
	}
	if len(sf.Retry.RetryableCategories) > 0 {
		cats := make([]session.ErrorCategory, 0, len(sf.Retry.RetryableCategories))
		for _, c := range sf.Retry.RetryableCategories {
			cats = append(cats, session.ErrorCategory(c))
		}
		params.Retry.RetryableCategories = cats
	}

	if sf.QualityGates != nil {
		params.DefaultGates = sf.QualityGates
	}
	if sf.Verification != nil {
		params.Verification = sf.Verification
	}
	if sf.Completion.TestWarningGraceCompletions > 0 {
		params.TestWarningGraceCompletions = sf.Completion.TestWarningGraceCompletions
	}

	if sf.Archive.Mode != "" {
		params.ArchiveMode = sf.Archive.Mode
		params.S3Bucket = sf.Archive.S3Bucket
		params.S3Prefix = sf.Archive.S3Prefix
		params.S3Region = sf.Archive.S3Region
	}

	if sf.Health.MinDiskSpaceMB > 0 {
		params.MinDiskSpaceMB = sf.Health.MinDiskSpaceMB
	}
	if sf.Log.StderrLevel != "" {
		params.StderrLevel = sf.Log.StderrLevel
	}
}

// applyEnv overlays environment variables; returns true when any was set
func applyEnv(params *appconfig.Params) bool {
	applied := false
	if v := os.Getenv("FORGELOOP_AGENT_BIN"); v != "" {
		params.AgentBin = v
		applied = true
	}
	if v := os.Getenv("FORGELOOP_AGENT_MODE"); v != "" {
		params.AgentMode = v
		applied = true
	}
	if v := os.Getenv("FORGELOOP_MODEL"); v != "" {
		params.Model = v
		applied = true
	}
	if v := os.Getenv("FORGELOOP_HEAVY_MODEL"); v != "" {
		params.HeavyModel = v
		applied = true
	}
	if v := os.Getenv("FORGELOOP_STDERR_LEVEL"); v != "" {
		params.StderrLevel = v
		applied = true
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		params.APIKey = v
	}
	return applied
}
