package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/infra/persistence/file"
)

// SessionStateRepository persists the crash-recovery snapshot of the
// in-flight session. The file exists only while a session is running or
// after an unclean exit.
type SessionStateRepository struct {
	fs   afero.Fs
	path string
}

// NewSessionStateRepository creates a repository for the given state path
func NewSessionStateRepository(fs afero.Fs, path string) *SessionStateRepository {
	return &SessionStateRepository{fs: fs, path: path}
}

// Save writes the snapshot atomically, stamping UpdatedAt
func (r *SessionStateRepository) Save(state *session.State) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := file.WriteFileAtomic(r.fs, r.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot, or nil when none exists
func (r *SessionStateRepository) Load() (*session.State, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}

	var state session.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse session state: %w", err)
	}
	return &state, nil
}

// Clear removes the snapshot; a missing file is not an error
func (r *SessionStateRepository) Clear() error {
	err := r.fs.Remove(r.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session state: %w", err)
	}
	return nil
}
