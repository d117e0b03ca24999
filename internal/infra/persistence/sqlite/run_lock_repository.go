package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// RunLock records which process currently owns the harness run lock.
// Only one harness instance may drive a project at a time.
type RunLock struct {
	LockID      string
	PID         int
	Hostname    string
	AcquiredAt  time.Time
	ExpiresAt   time.Time
	HeartbeatAt time.Time
}

// IsExpired reports whether the lock TTL has elapsed
func (l *RunLock) IsExpired() bool {
	return time.Now().UTC().After(l.ExpiresAt)
}

// RunLockRepository manages run locks in SQLite
type RunLockRepository struct {
	db *sql.DB
}

// NewRunLockRepository creates a repository over an opened database
func NewRunLockRepository(db *sql.DB) *RunLockRepository {
	return &RunLockRepository{db: db}
}

// Acquire attempts to take the lock, cleaning up stale locks first.
// Returns nil (no error) when another live process holds the lock.
func (r *RunLockRepository) Acquire(ctx context.Context, lockID string, ttl time.Duration) (*RunLock, error) {
	now := time.Now().UTC()

	existing, err := r.Find(ctx, lockID)
	if err == nil {
		stale := existing.IsExpired() || !isProcessRunning(existing.PID)
		if !stale {
			return nil, nil
		}

		// Delete the stale row; losing the race to another process is fine
		result, _ := r.db.ExecContext(ctx,
			`DELETE FROM run_locks WHERE lock_id = ? AND (expires_at < ? OR pid = ?)`,
			lockID, now.Format(time.RFC3339Nano), existing.PID,
		)
		if result != nil {
			if rows, _ := result.RowsAffected(); rows == 0 {
				if still, _ := r.Find(ctx, lockID); still != nil {
					return nil, nil
				}
			}
		}
	}

	hostname, _ := os.Hostname()
	lock := &RunLock{
		LockID:      lockID,
		PID:         os.Getpid(),
		Hostname:    hostname,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(ttl),
		HeartbeatAt: now,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO run_locks (lock_id, pid, hostname, acquired_at, expires_at, heartbeat_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lock.LockID, lock.PID, lock.Hostname,
		lock.AcquiredAt.Format(time.RFC3339Nano),
		lock.ExpiresAt.Format(time.RFC3339Nano),
		lock.HeartbeatAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("insert run lock: %w", err)
	}

	return lock, nil
}

// Release removes the lock row
func (r *RunLockRepository) Release(ctx context.Context, lockID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM run_locks WHERE lock_id = ?`, lockID)
	if err != nil {
		return fmt.Errorf("delete run lock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("lock not found: %s", lockID)
	}
	return nil
}

// Find retrieves a lock by ID
func (r *RunLockRepository) Find(ctx context.Context, lockID string) (*RunLock, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT lock_id, pid, hostname, acquired_at, expires_at, heartbeat_at
		 FROM run_locks WHERE lock_id = ?`, lockID)

	var (
		lock                              RunLock
		acquiredAt, expiresAt, heartbeatAt string
	)
	err := row.Scan(&lock.LockID, &lock.PID, &lock.Hostname, &acquiredAt, &expiresAt, &heartbeatAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run lock not found: %s", lockID)
		}
		return nil, fmt.Errorf("scan run lock: %w", err)
	}

	if lock.AcquiredAt, err = time.Parse(time.RFC3339Nano, acquiredAt); err != nil {
		return nil, fmt.Errorf("parse acquired_at: %w", err)
	}
	if lock.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if lock.HeartbeatAt, err = time.Parse(time.RFC3339Nano, heartbeatAt); err != nil {
		return nil, fmt.Errorf("parse heartbeat_at: %w", err)
	}

	return &lock, nil
}

// UpdateHeartbeat refreshes the heartbeat timestamp for a held lock
func (r *RunLockRepository) UpdateHeartbeat(ctx context.Context, lockID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE run_locks SET heartbeat_at = ? WHERE lock_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), lockID)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("lock not found: %s", lockID)
	}
	return nil
}

// CleanupExpired removes all expired locks, returning the count removed
func (r *RunLockRepository) CleanupExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM run_locks WHERE expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("cleanup expired locks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rows), nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
