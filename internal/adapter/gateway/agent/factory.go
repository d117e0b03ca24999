package agent

import (
	"fmt"

	appconfig "github.com/forgeloop/forgeloop/internal/app/config"
	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

// NewAgentGateway creates the agent gateway variant selected by
// configuration. The variant is fixed once per harness run; call sites
// never branch on the mode again.
func NewAgentGateway(cfg appconfig.Config) (output.AgentGateway, error) {
	switch cfg.AgentMode() {
	case "cli", "":
		return NewClaudeCLIGateway(cfg.AgentBin(), cfg.Model(), cfg.ProjectPath(), cfg.SessionTimeout()), nil

	case "api":
		if cfg.APIKey() == "" {
			return nil, fmt.Errorf("agent mode %q requires ANTHROPIC_API_KEY", cfg.AgentMode())
		}
		return NewClaudeAPIGateway(cfg.APIKey(), cfg.Model(), cfg.SessionTimeout()), nil

	default:
		return nil, fmt.Errorf("unknown agent mode: %s (supported: cli, api)", cfg.AgentMode())
	}
}
