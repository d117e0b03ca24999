package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *RunLockRepository {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunLockRepository(db)
}

func TestRunLock_AcquireAndRelease(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	lock, err := repo.Acquire(ctx, "project-x", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "project-x", lock.LockID)
	assert.NotZero(t, lock.PID)
	assert.False(t, lock.IsExpired())

	found, err := repo.Find(ctx, "project-x")
	require.NoError(t, err)
	assert.Equal(t, lock.PID, found.PID)

	require.NoError(t, repo.Release(ctx, "project-x"))
	_, err = repo.Find(ctx, "project-x")
	require.Error(t, err)
}

func TestRunLock_HeldByLiveProcess(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Acquire(ctx, "project-x", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same PID is alive, lock is fresh: second acquire is refused
	second, err := repo.Acquire(ctx, "project-x", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestRunLock_StaleExpiredLockIsReplaced(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Expired immediately
	first, err := repo.Acquire(ctx, "project-x", -time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.IsExpired())

	second, err := repo.Acquire(ctx, "project-x", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.False(t, second.IsExpired())
}

func TestRunLock_UpdateHeartbeat(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	lock, err := repo.Acquire(ctx, "project-x", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	require.NoError(t, repo.UpdateHeartbeat(ctx, "project-x"))

	found, err := repo.Find(ctx, "project-x")
	require.NoError(t, err)
	assert.False(t, found.HeartbeatAt.Before(lock.HeartbeatAt))

	assert.Error(t, repo.UpdateHeartbeat(ctx, "missing"))
}

func TestRunLock_TimestampsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	lock, err := repo.Acquire(ctx, "project-x", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	// the stored row must carry the same instants Acquire returned,
	// not a second-truncated copy
	found, err := repo.Find(ctx, "project-x")
	require.NoError(t, err)
	assert.True(t, found.AcquiredAt.Equal(lock.AcquiredAt))
	assert.True(t, found.ExpiresAt.Equal(lock.ExpiresAt))
	assert.True(t, found.HeartbeatAt.Equal(lock.HeartbeatAt))
}

func TestRunLock_CleanupExpired(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Acquire(ctx, "stale-a", -time.Second)
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, "stale-b", -time.Second)
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, "live", time.Minute)
	require.NoError(t, err)

	removed, err := repo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = repo.Find(ctx, "live")
	assert.NoError(t, err)
}

func TestRunLock_ReleaseMissing(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Release(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock not found")
}
