package repository

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
)

func TestBacklogRepository_SaveAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	repo := NewBacklogRepository(fs, "/home/.forgeloop/var/backlog.json")

	assert.False(t, repo.Exists())

	backlog := feature.NewBacklog("myproject", "/work/myproject")
	f1, err := feature.NewFeature("feat-001", "Login page", 5)
	require.NoError(t, err)
	f2, err := feature.NewFeature("feat-002", "Logout", 3)
	require.NoError(t, err)
	require.NoError(t, backlog.AddFeature(f1))
	require.NoError(t, backlog.AddFeature(f2))

	require.NoError(t, repo.Save(backlog))
	assert.True(t, repo.Exists())

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, "myproject", loaded.ProjectName)
	require.Len(t, loaded.Features, 2)
	assert.Equal(t, "feat-001", loaded.Features[0].ID)
}

func TestBacklogRepository_LoadMissing(t *testing.T) {
	repo := NewBacklogRepository(afero.NewMemMapFs(), "/backlog.json")
	_, err := repo.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forgeloop init")
}

func TestBacklogRepository_LoadInvalidJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/backlog.json", []byte("{broken"), 0o644))

	repo := NewBacklogRepository(fs, "/backlog.json")
	_, err := repo.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse backlog")
}

func TestBacklogRepository_LoadRejectsInvalidDependencies(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `{
  "project_name": "p",
  "features": [
    {"id": "feat-001", "title": "A", "status": "pending", "depends_on": ["missing"]}
  ]
}`
	require.NoError(t, afero.WriteFile(fs, "/backlog.json", []byte(doc), 0o644))

	repo := NewBacklogRepository(fs, "/backlog.json")
	_, err := repo.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backlog")
}
