package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgeloop/forgeloop/internal/app"
)

// sampleConfig is written on init as a commented starting point
const sampleConfig = `# forgeloop configuration
project:
  name: my-project
  path: .

agent:
  mode: cli            # cli | api
  bin: claude
  model: claude-sonnet-4-5
#  heavy_model: claude-opus-4-5   # upgrade target for complex features
  session_timeout: 30m

orchestration:
  handoff_threshold_percent: 85
  interval: 5s
  max_sessions: 0      # 0 = unlimited

retry:
  max_retries: 3
  base_delay_seconds: 2
  max_delay_seconds: 60
  exponential_base: 2
  jitter_factor: 0.2

# quality_gates:
#   lint_command: npm run lint
#   type_check_command: npm run typecheck
#   max_file_lines: 500

# verification:
#   test_command: npm test
#   coverage_command: npm run coverage
#   coverage_report_path: coverage/coverage-summary.json
#   coverage_threshold: 80
#   require_manual_approval: false

completion:
  test_warning_grace_completions: 3

archive:
  mode: local          # local | s3
#  s3_bucket: my-bucket
#  s3_prefix: forgeloop
#  s3_region: us-east-1

health:
  min_disk_space_mb: 500

log:
  stderr_level: info
`

// emptyBacklog seeds var/backlog.json so 'backlog register' has a target
const emptyBacklog = `{
  "project_name": "my-project",
  "project_path": ".",
  "features": []
}
`

func newInitCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the .forgeloop directory structure",
		RunE: func(c *cobra.Command, _ []string) error {
			if dir == "" {
				dir = "."
			}

			paths := app.ResolvePathsIn(filepath.Join(dir, homeDir()))
			for _, d := range []string{paths.Etc, paths.Var, paths.Artifacts} {
				if err := os.MkdirAll(d, 0o755); err != nil {
					return fmt.Errorf("create directory %s: %w", d, err)
				}
			}

			if err := writeIfNotExists(paths.Config, []byte(sampleConfig)); err != nil {
				return err
			}
			if err := writeIfNotExists(paths.Backlog, []byte(emptyBacklog)); err != nil {
				return err
			}

			fmt.Printf("Initialized %s:\n", paths.Home)
			fmt.Printf("  %s\n", paths.Config)
			fmt.Printf("  %s\n", paths.Backlog)
			fmt.Printf("  %s/\n", paths.Artifacts)
			fmt.Println("Edit the config, register features with 'forgeloop backlog register', then 'forgeloop run'.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Target directory")
	return cmd
}

// writeIfNotExists never overwrites existing files
func writeIfNotExists(path string, b []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, b, 0o644)
}
