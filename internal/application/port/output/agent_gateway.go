package output

import (
	"context"
	"time"
)

// AgentGateway is the interface for driving an external coding agent.
// The agent process is an opaque unit of work: the gateway submits a
// prompt and reports what came back. Variants (CLI subprocess, HTTP API)
// are selected once at configuration time.
type AgentGateway interface {
	// Execute runs the agent with the given request
	Execute(ctx context.Context, req AgentRequest) (*AgentResponse, error)

	// Name returns the gateway variant identifier
	Name() string

	// HealthCheck verifies the agent backend is reachable
	HealthCheck(ctx context.Context) error
}

// AgentRequest represents one agent invocation
type AgentRequest struct {
	Prompt     string        // The prompt to send
	Model      string        // Model identifier (gateway default when empty)
	WorkingDir string        // Directory the agent operates in
	Timeout    time.Duration // Execution timeout
}

// AgentResponse is the raw outcome of one agent invocation, before the
// orchestrator interprets the session report embedded in the output.
type AgentResponse struct {
	Output       string        // Agent output text
	ExitCode     int           // Exit code for CLI-based agents
	Duration     time.Duration // Wall-clock execution time
	InputTokens  int           // Tokens consumed (0 when unavailable)
	OutputTokens int           // Tokens produced (0 when unavailable)
	CostUSD      float64       // Reported cost (0 when unavailable)
	Model        string        // Model that actually served the request
}
