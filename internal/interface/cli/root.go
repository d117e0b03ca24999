package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeloop/forgeloop/internal/app"
	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	infraConfig "github.com/forgeloop/forgeloop/internal/infra/config"
	"github.com/forgeloop/forgeloop/internal/interface/cli/common"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig appconfig.Config

// cliLogger is the leveled stderr logger all commands share
var cliLogger = common.NewLogger(common.LogLevelInfo, os.Stderr)

// NewRoot builds the forgeloop command tree
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgeloop",
		Short: "Autonomous coding-agent harness",
		Long:  "forgeloop drives an LLM coding agent through a feature backlog, one bounded session at a time.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs
			// Priority: etc/config.yaml > ENV > defaults
			cfg, err := infraConfig.LoadSettings(homeDir())
			if err != nil {
				return err
			}
			globalConfig = cfg
			cliLogger.SetLevel(common.ParseLogLevel(cfg.StderrLevel()))
			app.SetLogger(&loggerBridge{cliLogger})
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newBacklogCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// homeDir resolves the forgeloop home directory (FORGELOOP_HOME or .forgeloop)
func homeDir() string {
	if home := os.Getenv("FORGELOOP_HOME"); home != "" {
		return home
	}
	return ".forgeloop"
}

// loggerBridge adapts the CLI logger to the app.Logger interface
type loggerBridge struct {
	l *common.Logger
}

func (b *loggerBridge) Debug(format string, args ...interface{}) { b.l.Debug(format, args...) }
func (b *loggerBridge) Info(format string, args ...interface{})  { b.l.Info(format, args...) }
func (b *loggerBridge) Warn(format string, args ...interface{})  { b.l.Warn(format, args...) }
func (b *loggerBridge) Error(format string, args ...interface{}) { b.l.Error(format, args...) }
