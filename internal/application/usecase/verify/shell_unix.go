//go:build !windows

package verify

import (
	"context"
	"os/exec"
)

// shellCommand wraps a configured check command in the POSIX shell
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// hookCommand invokes a pre-complete hook script directly
func hookCommand(ctx context.Context, script string) *exec.Cmd {
	return exec.CommandContext(ctx, "sh", script)
}
