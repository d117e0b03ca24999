package verify

import (
	"context"
	"os/exec"
	"time"
)

// CommandResult captures one shell command execution. A failing or timed
// out command is an expected outcome here, never a propagated error.
type CommandResult struct {
	ExitCode int
	Output   string
	TimedOut bool
	Err      error // spawn failure, not a non-zero exit
}

// OK reports whether the command ran to completion with exit code 0
func (r CommandResult) OK() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// CommandRunner executes a configured check command. Tests substitute a
// scripted implementation.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string, env []string, timeout time.Duration) CommandResult
}

// ShellRunner runs commands through the platform shell
type ShellRunner struct{}

// Run executes the command with a hard timeout, capturing combined output
func (ShellRunner) Run(ctx context.Context, command, dir string, env []string, timeout time.Duration) CommandResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := shellCommand(ctx, command)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	out, err := cmd.CombinedOutput()
	result := CommandResult{Output: string(out)}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.Err = err
		}
	}
	return result
}

// truncateOutput bounds captured command output before it is stored in a
// result, keeping reports and logs small.
func truncateOutput(s string) string {
	const max = 1000
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
