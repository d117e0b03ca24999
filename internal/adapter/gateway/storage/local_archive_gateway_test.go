package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

func TestLocalArchiveGateway_SaveAndLoad(t *testing.T) {
	gw, err := NewLocalArchiveGateway(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	meta, err := gw.SaveArtifact(ctx, output.SaveArtifactRequest{
		FeatureID:    "feat-001",
		SessionID:    "S-01ABC",
		ArtifactType: output.ArtifactTypeTranscript,
		Content:      []byte("session transcript body"),
		ContentType:  "text/plain",
		Metadata:     map[string]string{"attempt": "1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "feat-001", meta.FeatureID)
	assert.Equal(t, int64(len("session transcript body")), meta.Size)

	artifact, err := gw.LoadArtifact(ctx, "feat-001", meta.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("session transcript body"), artifact.Content)
	assert.Equal(t, output.ArtifactTypeTranscript, artifact.Metadata.Type)
	assert.Equal(t, "1", artifact.Metadata.Metadata["attempt"])
}

func TestLocalArchiveGateway_LoadMissing(t *testing.T) {
	gw, err := NewLocalArchiveGateway(t.TempDir())
	require.NoError(t, err)

	_, err = gw.LoadArtifact(context.Background(), "feat-001", "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestLocalArchiveGateway_ListArtifacts(t *testing.T) {
	gw, err := NewLocalArchiveGateway(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, typ := range []output.ArtifactType{output.ArtifactTypeTranscript, output.ArtifactTypeReport} {
		_, err := gw.SaveArtifact(ctx, output.SaveArtifactRequest{
			FeatureID:    "feat-002",
			ArtifactType: typ,
			Content:      []byte("x"),
		})
		require.NoError(t, err)
	}

	list, err := gw.ListArtifacts(ctx, "feat-002")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// unknown feature lists empty, not an error
	empty, err := gw.ListArtifacts(ctx, "feat-unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
