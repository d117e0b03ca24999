package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/infra/persistence/file"
)

// BacklogRepository persists the feature backlog as pretty-printed JSON.
// Writes are atomic so a crash mid-save never corrupts the backlog.
type BacklogRepository struct {
	fs   afero.Fs
	path string
}

// NewBacklogRepository creates a repository for the given backlog path
func NewBacklogRepository(fs afero.Fs, path string) *BacklogRepository {
	return &BacklogRepository{fs: fs, path: path}
}

// Exists reports whether a backlog file is present
func (r *BacklogRepository) Exists() bool {
	ok, _ := afero.Exists(r.fs, r.path)
	return ok
}

// Load reads and validates the backlog
func (r *BacklogRepository) Load() (*feature.Backlog, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backlog not found at %s (run 'forgeloop init' first)", r.path)
		}
		return nil, fmt.Errorf("read backlog: %w", err)
	}

	var backlog feature.Backlog
	if err := json.Unmarshal(data, &backlog); err != nil {
		return nil, fmt.Errorf("parse backlog: %w", err)
	}
	if err := backlog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backlog: %w", err)
	}
	return &backlog, nil
}

// Save writes the backlog atomically
func (r *BacklogRepository) Save(backlog *feature.Backlog) error {
	data, err := json.MarshalIndent(backlog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backlog: %w", err)
	}
	if err := file.WriteFileAtomic(r.fs, r.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write backlog: %w", err)
	}
	return nil
}
