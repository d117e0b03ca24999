package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

func TestS3ArchiveGateway_SaveAndLoad(t *testing.T) {
	client := NewMockS3Client()
	gw := NewS3ArchiveGatewayWithClient(client, "forgeloop-artifacts", "prod")
	ctx := context.Background()

	meta, err := gw.SaveArtifact(ctx, output.SaveArtifactRequest{
		FeatureID:    "feat-001",
		SessionID:    "S-01ABC",
		ArtifactType: output.ArtifactTypeReport,
		Content:      []byte(`{"passed":true}`),
		ContentType:  "application/json",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(meta.StoragePath, "s3://forgeloop-artifacts/prod/artifacts/feat-001/"))
	// content + metadata.json
	assert.Equal(t, 2, client.ObjectCount())

	artifact, err := gw.LoadArtifact(ctx, "feat-001", meta.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"passed":true}`), artifact.Content)
	assert.Equal(t, output.ArtifactTypeReport, artifact.Metadata.Type)
}

func TestS3ArchiveGateway_LoadMissing(t *testing.T) {
	gw := NewS3ArchiveGatewayWithClient(NewMockS3Client(), "bucket", "")
	_, err := gw.LoadArtifact(context.Background(), "feat-001", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestS3ArchiveGateway_ListArtifacts(t *testing.T) {
	client := NewMockS3Client()
	gw := NewS3ArchiveGatewayWithClient(client, "bucket", "")
	ctx := context.Background()

	_, err := gw.SaveArtifact(ctx, output.SaveArtifactRequest{
		FeatureID:    "feat-002",
		ArtifactType: output.ArtifactTypeTranscript,
		Content:      []byte("a"),
	})
	require.NoError(t, err)
	_, err = gw.SaveArtifact(ctx, output.SaveArtifactRequest{
		FeatureID:    "feat-003",
		ArtifactType: output.ArtifactTypeTranscript,
		Content:      []byte("b"),
	})
	require.NoError(t, err)

	list, err := gw.ListArtifacts(ctx, "feat-002")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "feat-002", list[0].FeatureID)
}

func TestS3ArchiveGateway_DeleteArtifact(t *testing.T) {
	client := NewMockS3Client()
	gw := NewS3ArchiveGatewayWithClient(client, "bucket", "")
	ctx := context.Background()

	meta, err := gw.SaveArtifact(ctx, output.SaveArtifactRequest{
		FeatureID:    "feat-004",
		ArtifactType: output.ArtifactTypeLog,
		Content:      []byte("log data"),
	})
	require.NoError(t, err)

	require.NoError(t, gw.DeleteArtifact(ctx, "feat-004", meta.ID))
	assert.Equal(t, 0, client.ObjectCount())
}
