package output

import "context"

// GitStatus describes the working tree at a point in time
type GitStatus struct {
	Branch            string
	HasChanges        bool
	StagedFiles       []string
	ModifiedFiles     []string
	UntrackedFiles    []string
	LastCommitHash    string
	LastCommitMessage string
}

// GitOperations is the git capability the orchestration core consumes.
// Implementations shell out to git; the core never does.
type GitOperations interface {
	// IsGitRepo reports whether the project path is inside a git work tree
	IsGitRepo() bool

	// GetStatus returns the current working-tree status
	GetStatus(ctx context.Context) (*GitStatus, error)

	// StageAll stages every change in the working tree
	StageAll(ctx context.Context) error

	// Commit creates a commit and returns its hash. An empty hash with a
	// nil error means there was nothing to commit.
	Commit(ctx context.Context, message string, allowEmpty bool) (string, error)

	// GetChangedFiles lists files changed since the given commit
	GetChangedFiles(ctx context.Context, since string) ([]string, error)
}
