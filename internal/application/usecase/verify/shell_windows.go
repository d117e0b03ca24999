//go:build windows

package verify

import (
	"context"
	"os/exec"
	"strings"
)

// shellCommand wraps a configured check command in cmd.exe
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", command)
}

// hookCommand invokes a pre-complete hook script with the interpreter
// matching its extension
func hookCommand(ctx context.Context, script string) *exec.Cmd {
	lower := strings.ToLower(script)
	if strings.HasSuffix(lower, ".ps1") {
		return exec.CommandContext(ctx, "powershell", "-ExecutionPolicy", "Bypass", "-File", script)
	}
	return exec.CommandContext(ctx, "cmd", "/C", script)
}
