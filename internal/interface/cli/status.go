package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

// statusOutput is the JSON document emitted by 'status --json'
type statusOutput struct {
	TS             string         `json:"ts"`
	Session        int            `json:"session"`
	CurrentFeature string         `json:"current_feature"`
	OK             bool           `json:"ok"`
	Error          string         `json:"error"`
	Features       map[string]int `json:"features"`
	TotalSessions  int            `json:"total_sessions"`
	InputTokens    int            `json:"input_tokens"`
	OutputTokens   int            `json:"output_tokens"`
	CostUSD        float64        `json:"cost_usd"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backlog progress and harness health",
		RunE: func(c *cobra.Command, _ []string) error {
			paths := app.ResolvePathsIn(globalConfig.Home())
			fs := afero.NewOsFs()

			out := statusOutput{
				TS:       time.Now().UTC().Format(time.RFC3339Nano),
				OK:       true,
				Features: map[string]int{},
			}

			backlogs := repository.NewBacklogRepository(fs, paths.Backlog)
			var backlog *feature.Backlog
			if backlogs.Exists() {
				var err error
				backlog, err = backlogs.Load()
				if err != nil {
					return err
				}
				for status, n := range backlog.CountByStatus() {
					out.Features[string(status)] = n
				}
			}

			if health, err := app.ReadHealth(paths.Health); err == nil && health != nil {
				out.Session = health.Session
				out.CurrentFeature = health.FeatureID
				out.OK = health.OK
				out.Error = health.Error
			}

			history := repository.NewHistoryRepository(fs, paths.History)
			if records, err := history.Load(); err == nil {
				out.TotalSessions = len(records)
			}
			if in, outTok, cost, err := history.Totals(); err == nil {
				out.InputTokens = in
				out.OutputTokens = outTok
				out.CostUSD = cost
			}

			if jsonOutput {
				b, err := json.Marshal(out)
				if err != nil {
					return fmt.Errorf("marshal json: %w", err)
				}
				fmt.Println(string(b))
				return nil
			}

			if backlog == nil {
				fmt.Println("No backlog registered (run 'forgeloop init' first)")
				return nil
			}
			fmt.Printf("Project  : %s\n", backlog.ProjectName)
			fmt.Printf("Features : %d completed / %d total\n",
				out.Features[string(feature.StatusCompleted)], len(backlog.Features))
			for _, status := range []feature.Status{feature.StatusPending, feature.StatusInProgress, feature.StatusBlocked} {
				if n := out.Features[string(status)]; n > 0 {
					fmt.Printf("  %-12s %d\n", status, n)
				}
			}
			if out.CurrentFeature != "" {
				fmt.Printf("Last     : session %d on %s (ok=%v)\n", out.Session, out.CurrentFeature, out.OK)
			}
			if out.Error != "" {
				fmt.Printf("Error    : %s\n", out.Error)
			}
			fmt.Printf("Sessions : %d total, %d in / %d out tokens, $%.2f\n",
				out.TotalSessions, out.InputTokens, out.OutputTokens, out.CostUSD)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status in JSON format")
	return cmd
}
