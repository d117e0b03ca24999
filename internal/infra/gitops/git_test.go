package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo initializes a throwaway git repository, or skips when git
// is unavailable.
func newTestRepo(t *testing.T) *Git {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	return New(dir)
}

func TestGit_IsGitRepo(t *testing.T) {
	g := newTestRepo(t)
	assert.True(t, g.IsGitRepo())

	assert.False(t, New(t.TempDir()).IsGitRepo())
}

func TestGit_StatusAndCommit(t *testing.T) {
	g := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(g.workDir, "a.txt"), []byte("hello"), 0o644))

	status, err := g.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.HasChanges)
	assert.Contains(t, status.UntrackedFiles, "a.txt")

	require.NoError(t, g.StageAll(ctx))
	hash, err := g.Commit(ctx, "add a.txt", false)
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	status, err = g.GetStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.HasChanges)
	assert.Equal(t, hash, status.LastCommitHash)
	assert.Equal(t, "add a.txt", status.LastCommitMessage)
}

func TestGit_CommitNothingStaged(t *testing.T) {
	g := newTestRepo(t)
	ctx := context.Background()

	// Seed one commit so HEAD exists
	require.NoError(t, os.WriteFile(filepath.Join(g.workDir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, g.StageAll(ctx))
	_, err := g.Commit(ctx, "seed", false)
	require.NoError(t, err)

	hash, err := g.Commit(ctx, "empty", false)
	require.NoError(t, err)
	assert.Empty(t, hash)

	// allowEmpty forces a commit through
	hash, err = g.Commit(ctx, "checkpoint", true)
	require.NoError(t, err)
	assert.Len(t, hash, 40)
}

func TestGit_GetChangedFiles(t *testing.T) {
	g := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(g.workDir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, g.StageAll(ctx))
	first, err := g.Commit(ctx, "first", false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(g.workDir, "b.txt"), []byte("y"), 0o644))
	require.NoError(t, g.StageAll(ctx))
	_, err = g.Commit(ctx, "second", false)
	require.NoError(t, err)

	files, err := g.GetChangedFiles(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, files)
}
