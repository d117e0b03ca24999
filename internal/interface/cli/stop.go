package cli

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/infra/persistence/file"
)

func newStopCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Request a graceful shutdown of a running harness",
		Long: `Stop writes a stop-request marker that the harness polls between
sessions. The current session finishes, in-flight work is committed and
checkpointed, then the harness exits.`,
		RunE: func(c *cobra.Command, _ []string) error {
			paths := app.ResolvePathsIn(globalConfig.Home())

			content := time.Now().UTC().Format(time.RFC3339)
			if reason != "" {
				content += " " + reason
			}
			content += "\n"

			fs := afero.NewOsFs()
			if err := file.WriteFileAtomic(fs, paths.StopRequest, []byte(content)); err != nil {
				return fmt.Errorf("write stop request: %w", err)
			}
			fmt.Printf("Stop requested (%s). The harness will exit after the current session.\n", paths.StopRequest)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the harness should stop")
	return cmd
}
