package repository

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
)

func TestHistoryRepository_AppendAndLoad(t *testing.T) {
	repo := NewHistoryRepository(afero.NewMemMapFs(), "/var/history.json")

	now := time.Now().UTC()
	rec := session.NewRecord("S-1", "feat-001", session.OutcomeSuccess, now.Add(-time.Minute), now)
	rec.InputTokens = 1000
	rec.OutputTokens = 500
	rec.CostUSD = 0.12

	require.NoError(t, repo.Append(rec))
	require.NoError(t, repo.Append(session.NewRecord("S-2", "feat-002", session.OutcomeHandoff, now, now)))

	records, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "S-1", records[0].SessionID)
	assert.Equal(t, session.OutcomeHandoff, records[1].Outcome)
}

func TestHistoryRepository_LoadMissingIsEmpty(t *testing.T) {
	repo := NewHistoryRepository(afero.NewMemMapFs(), "/var/history.json")
	records, err := repo.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryRepository_FindByFeature(t *testing.T) {
	repo := NewHistoryRepository(afero.NewMemMapFs(), "/var/history.json")
	now := time.Now().UTC()

	require.NoError(t, repo.Append(session.NewRecord("S-1", "feat-001", session.OutcomeHandoff, now, now)))
	require.NoError(t, repo.Append(session.NewRecord("S-2", "feat-002", session.OutcomeSuccess, now, now)))
	require.NoError(t, repo.Append(session.NewRecord("S-3", "feat-001", session.OutcomeSuccess, now, now)))

	matched, err := repo.FindByFeature("feat-001")
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "S-1", matched[0].SessionID)
	assert.Equal(t, "S-3", matched[1].SessionID)
}

func TestHistoryRepository_UpdateRecord(t *testing.T) {
	repo := NewHistoryRepository(afero.NewMemMapFs(), "/var/history.json")
	now := time.Now().UTC()

	rec := session.NewRecord("S-1", "feat-001", session.OutcomeFailure, now, now)
	require.NoError(t, repo.Append(rec))

	rec.Outcome = session.OutcomeTimeout
	rec.ErrorMessage = "reclassified after log review"
	require.NoError(t, repo.UpdateRecord(rec))

	records, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, session.OutcomeTimeout, records[0].Outcome)

	missing := session.NewRecord("S-9", "feat-009", session.OutcomeSuccess, now, now)
	assert.Error(t, repo.UpdateRecord(missing))
}

func TestHistoryRepository_Totals(t *testing.T) {
	repo := NewHistoryRepository(afero.NewMemMapFs(), "/var/history.json")
	now := time.Now().UTC()

	a := session.NewRecord("S-1", "feat-001", session.OutcomeSuccess, now, now)
	a.InputTokens, a.OutputTokens, a.CostUSD = 100, 50, 0.5
	b := session.NewRecord("S-2", "feat-002", session.OutcomeFailure, now, now)
	b.InputTokens, b.OutputTokens, b.CostUSD = 200, 100, 1.25

	require.NoError(t, repo.Append(a))
	require.NoError(t, repo.Append(b))

	in, out, cost, err := repo.Totals()
	require.NoError(t, err)
	assert.Equal(t, 300, in)
	assert.Equal(t, 150, out)
	assert.InDelta(t, 1.75, cost, 1e-9)
}
