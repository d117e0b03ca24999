package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

// Git runs git commands against a project working tree
type Git struct {
	workDir string
}

// New creates git operations rooted at the given working directory
func New(workDir string) *Git {
	return &Git{workDir: workDir}
}

var _ output.GitOperations = (*Git)(nil)

// IsGitRepo reports whether workDir is inside a git work tree
func (g *Git) IsGitRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = g.workDir
	return cmd.Run() == nil
}

// GetStatus returns branch, change lists and the last commit
func (g *Git) GetStatus(ctx context.Context) (*output.GitStatus, error) {
	status := &output.GitStatus{}

	branch, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		status.Branch = branch
	}

	porcelain, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		switch {
		case code == "??":
			status.UntrackedFiles = append(status.UntrackedFiles, path)
		case code[0] != ' ':
			status.StagedFiles = append(status.StagedFiles, path)
		default:
			status.ModifiedFiles = append(status.ModifiedFiles, path)
		}
	}
	status.HasChanges = len(status.StagedFiles)+len(status.ModifiedFiles)+len(status.UntrackedFiles) > 0

	// Last commit is absent in a fresh repository
	if hash, err := g.run(ctx, "rev-parse", "HEAD"); err == nil {
		status.LastCommitHash = hash
		if msg, err := g.run(ctx, "log", "-1", "--format=%s"); err == nil {
			status.LastCommitMessage = msg
		}
	}

	return status, nil
}

// StageAll stages every change in the working tree
func (g *Git) StageAll(ctx context.Context) error {
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// Commit creates a commit and returns its hash. Returns an empty hash
// without error when nothing is staged and empty commits are not allowed.
func (g *Git) Commit(ctx context.Context, message string, allowEmpty bool) (string, error) {
	if !allowEmpty {
		// diff --cached --quiet exits 0 when nothing is staged
		cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
		cmd.Dir = g.workDir
		if cmd.Run() == nil {
			return "", nil
		}
	}

	args := []string{"commit", "-m", message}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	if _, err := g.run(ctx, args...); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	hash, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return hash, nil
}

// GetChangedFiles lists files changed since the given commit
func (g *Git) GetChangedFiles(ctx context.Context, since string) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", since, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// run executes a git subcommand and returns trimmed stdout
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
