package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	home := t.TempDir()

	cfg, err := LoadSettings(home)
	require.NoError(t, err)

	assert.Equal(t, "cli", cfg.AgentMode())
	assert.Equal(t, "claude", cfg.AgentBin())
	assert.Empty(t, cfg.HeavyModel(), "upgrading is opt-in")
	assert.Equal(t, 85.0, cfg.HandoffThresholdPercent())
	assert.Equal(t, 3, cfg.TestWarningGraceCompletions())
	assert.Equal(t, 5, cfg.Retry().MaxRetries)
	assert.Nil(t, cfg.Verification())
	assert.Equal(t, "default", cfg.ConfigSource())
}

func TestLoadSettings_FromYAML(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "etc"), 0755))

	doc := `
project:
  name: demo
  path: /work/demo
agent:
  mode: api
  model: claude-sonnet-4-5
  heavy_model: claude-opus-4-5
  session_timeout: 45m
orchestration:
  handoff_threshold_percent: 90
  interval: 10s
retry:
  max_retries: 2
  base_delay_seconds: 1
quality_gates:
  max_file_lines: 400
  lint_command: golangci-lint run
verification:
  test_command: go test ./...
  coverage_threshold: 80
  require_manual_approval: true
completion:
  test_warning_grace_completions: 5
archive:
  mode: s3
  s3_bucket: forgeloop-artifacts
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "etc", "config.yaml"), []byte(doc), 0644))

	cfg, err := LoadSettings(home)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.ProjectName())
	assert.Equal(t, "/work/demo", cfg.ProjectPath())
	assert.Equal(t, "api", cfg.AgentMode())
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model())
	assert.Equal(t, "claude-opus-4-5", cfg.HeavyModel())
	assert.Equal(t, 45*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 90.0, cfg.HandoffThresholdPercent())
	assert.Equal(t, 10*time.Second, cfg.Interval())
	assert.Equal(t, 2, cfg.Retry().MaxRetries)
	assert.Equal(t, 1.0, cfg.Retry().BaseDelaySeconds)

	require.NotNil(t, cfg.DefaultGates())
	assert.Equal(t, 400, cfg.DefaultGates().MaxFileLines)
	assert.Equal(t, "golangci-lint run", cfg.DefaultGates().LintCommand)

	require.NotNil(t, cfg.Verification())
	assert.Equal(t, "go test ./...", cfg.Verification().TestCommand)
	assert.Equal(t, 80.0, cfg.Verification().CoverageThreshold)
	assert.True(t, cfg.Verification().RequireManualApproval)

	assert.Equal(t, 5, cfg.TestWarningGraceCompletions())
	assert.Equal(t, "s3", cfg.ArchiveMode())
	assert.Equal(t, "forgeloop-artifacts", cfg.S3Bucket())
	assert.Equal(t, "yaml", cfg.ConfigSource())
}

func TestLoadSettings_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FORGELOOP_AGENT_BIN", "/usr/local/bin/claude-dev")
	t.Setenv("FORGELOOP_AGENT_MODE", "api")

	cfg, err := LoadSettings(home)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/claude-dev", cfg.AgentBin())
	assert.Equal(t, "api", cfg.AgentMode())
	assert.Equal(t, "env", cfg.ConfigSource())
}

func TestLoadSettings_InvalidYAML(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "etc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "etc", "config.yaml"), []byte("agent: ["), 0644))

	_, err := LoadSettings(home)
	assert.Error(t, err)
}
