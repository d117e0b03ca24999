package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

// LocalArchiveGateway stores session artifacts on the local filesystem.
// Layout: <baseDir>/artifacts/<featureID>/<artifactID>/
//   - content: artifact bytes
//   - metadata.json: artifact metadata
type LocalArchiveGateway struct {
	baseDir string
}

// NewLocalArchiveGateway creates a filesystem-backed archive rooted at baseDir
func NewLocalArchiveGateway(baseDir string) (*LocalArchiveGateway, error) {
	artifactsDir := filepath.Join(baseDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return &LocalArchiveGateway{baseDir: baseDir}, nil
}

// SaveArtifact writes the artifact content and its metadata
func (g *LocalArchiveGateway) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	artifactID := newArtifactID()

	artifactDir := filepath.Join(g.baseDir, "artifacts", req.FeatureID, artifactID)
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	contentPath := filepath.Join(artifactDir, "content")
	if err := os.WriteFile(contentPath, req.Content, 0644); err != nil {
		return nil, fmt.Errorf("write artifact content: %w", err)
	}

	metadata := output.ArtifactMetadata{
		ID:          artifactID,
		FeatureID:   req.FeatureID,
		SessionID:   req.SessionID,
		Type:        req.ArtifactType,
		StoragePath: contentPath,
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		UploadedAt:  time.Now().UTC(),
		Metadata:    req.Metadata,
	}

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	metadataPath := filepath.Join(artifactDir, "metadata.json")
	if err := os.WriteFile(metadataPath, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	return &metadata, nil
}

// LoadArtifact reads back an artifact saved for a feature
func (g *LocalArchiveGateway) LoadArtifact(ctx context.Context, featureID, artifactID string) (*output.Artifact, error) {
	artifactDir := filepath.Join(g.baseDir, "artifacts", featureID, artifactID)

	metadataJSON, err := os.ReadFile(filepath.Join(artifactDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s/%s", featureID, artifactID)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var metadata output.ArtifactMetadata
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	content, err := os.ReadFile(filepath.Join(artifactDir, "content"))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return &output.Artifact{
		ID:       artifactID,
		Content:  content,
		Metadata: metadata,
	}, nil
}

// ListArtifacts returns metadata for every artifact recorded for a feature
func (g *LocalArchiveGateway) ListArtifacts(ctx context.Context, featureID string) ([]*output.ArtifactMetadata, error) {
	featureDir := filepath.Join(g.baseDir, "artifacts", featureID)

	if _, err := os.Stat(featureDir); os.IsNotExist(err) {
		return []*output.ArtifactMetadata{}, nil
	}

	entries, err := os.ReadDir(featureDir)
	if err != nil {
		return nil, fmt.Errorf("read feature artifacts directory: %w", err)
	}

	var metadataList []*output.ArtifactMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metadataJSON, err := os.ReadFile(filepath.Join(featureDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue // skip artifacts with missing metadata
		}

		var metadata output.ArtifactMetadata
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			continue
		}
		metadataList = append(metadataList, &metadata)
	}

	return metadataList, nil
}

// newArtifactID returns a sortable unique artifact identifier
func newArtifactID() string {
	return ulid.Make().String()
}
