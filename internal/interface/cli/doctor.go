package cli

import (
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/infra/gitops"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
	"github.com/forgeloop/forgeloop/internal/infra/sysinfo"
)

// checkResult is one doctor probe outcome
type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment the harness needs",
		RunE: func(c *cobra.Command, _ []string) error {
			checks := runDoctorChecks()

			failed := 0
			for _, ck := range checks {
				if !ck.OK {
					failed++
				}
			}

			if jsonOutput {
				b, err := json.Marshal(checks)
				if err != nil {
					return err
				}
				fmt.Println(string(b))
			} else {
				for _, ck := range checks {
					mark := "OK  "
					if !ck.OK {
						mark = "FAIL"
					}
					fmt.Printf("%s %-16s %s\n", mark, ck.Name, ck.Detail)
				}
			}

			if failed > 0 {
				c.SilenceUsage = true
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
	return cmd
}

func runDoctorChecks() []checkResult {
	cfg := globalConfig
	paths := app.ResolvePathsIn(cfg.Home())
	fs := afero.NewOsFs()
	var checks []checkResult

	checks = append(checks, checkResult{
		Name:   "config",
		OK:     true,
		Detail: fmt.Sprintf("source=%s", cfg.ConfigSource()),
	})

	backlogs := repository.NewBacklogRepository(fs, paths.Backlog)
	if !backlogs.Exists() {
		checks = append(checks, checkResult{"backlog", false, fmt.Sprintf("%s missing (run 'forgeloop init')", paths.Backlog)})
	} else if backlog, err := backlogs.Load(); err != nil {
		checks = append(checks, checkResult{"backlog", false, err.Error()})
	} else {
		checks = append(checks, checkResult{"backlog", true, fmt.Sprintf("%d feature(s)", len(backlog.Features))})
	}

	if _, err := exec.LookPath("git"); err != nil {
		checks = append(checks, checkResult{"git", false, "git not found on PATH"})
	} else if !gitops.New(cfg.ProjectPath()).IsGitRepo() {
		checks = append(checks, checkResult{"git", false, fmt.Sprintf("%s is not a git repository", cfg.ProjectPath())})
	} else {
		checks = append(checks, checkResult{"git", true, cfg.ProjectPath()})
	}

	switch cfg.AgentMode() {
	case "api":
		if cfg.APIKey() == "" {
			checks = append(checks, checkResult{"agent", false, "api mode but ANTHROPIC_API_KEY is not set"})
		} else {
			checks = append(checks, checkResult{"agent", true, "api mode"})
		}
	default:
		if _, err := exec.LookPath(cfg.AgentBin()); err != nil {
			checks = append(checks, checkResult{"agent", false, fmt.Sprintf("%q not found on PATH", cfg.AgentBin())})
		} else {
			checks = append(checks, checkResult{"agent", true, cfg.AgentBin()})
		}
	}

	checks = append(checks, diskCheck(cfg.ProjectPath(), cfg.MinDiskSpaceMB()))
	return checks
}

func diskCheck(path string, minMB int64) checkResult {
	free, err := sysinfo.FreeDiskSpaceMB(path)
	if err != nil {
		return checkResult{"disk", true, fmt.Sprintf("probe unavailable: %v", err)}
	}
	if minMB > 0 && free < minMB {
		return checkResult{"disk", false, fmt.Sprintf("%dMB free, below required %dMB", free, minMB)}
	}
	return checkResult{"disk", true, fmt.Sprintf("%dMB free", free)}
}
