package agent

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
	"github.com/forgeloop/forgeloop/internal/interface/external/claudecli"
)

// ClaudeCLIGateway implements AgentGateway using the claude CLI in print
// mode. Each Execute spawns one subprocess and waits for it to finish;
// the process is treated as an uninterruptible unit of work.
type ClaudeCLIGateway struct {
	bin        string
	model      string
	timeout    time.Duration
	workingDir string
}

// NewClaudeCLIGateway creates a CLI gateway for the given binary and model
func NewClaudeCLIGateway(bin, model, workingDir string, timeout time.Duration) *ClaudeCLIGateway {
	if bin == "" {
		bin = "claude"
	}
	return &ClaudeCLIGateway{
		bin:        bin,
		model:      model,
		timeout:    timeout,
		workingDir: workingDir,
	}
}

// Execute runs the claude CLI with the given request
func (g *ClaudeCLIGateway) Execute(ctx context.Context, req output.AgentRequest) (*output.AgentResponse, error) {
	start := time.Now()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = g.timeout
	}
	model := req.Model
	if model == "" {
		model = g.model
	}
	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = g.workingDir
	}

	runner := claudecli.Runner{Bin: g.bin, Timeout: timeout}
	resp, err := runner.RunWithOptions(ctx, req.Prompt, &claudecli.RunOptions{
		Model:      model,
		WorkingDir: workingDir,
	})
	if err != nil {
		return nil, fmt.Errorf("claude CLI execution failed: %w", err)
	}

	return &output.AgentResponse{
		Output:       resp.Result,
		ExitCode:     0,
		Duration:     time.Since(start),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      resp.TotalCost,
		Model:        model,
	}, nil
}

// Name returns the gateway variant identifier
func (g *ClaudeCLIGateway) Name() string {
	return "claude-cli"
}

// HealthCheck verifies the claude binary is on PATH
func (g *ClaudeCLIGateway) HealthCheck(ctx context.Context) error {
	if _, err := exec.LookPath(g.bin); err != nil {
		return fmt.Errorf("agent binary %q not found: %w", g.bin, err)
	}
	return nil
}
