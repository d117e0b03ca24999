package output

import (
	"context"
	"time"
)

// ArchiveGateway persists session artifacts (transcripts, verification
// reports, rotated logs) to durable storage. Implementations exist for
// the local filesystem and S3, selected at configuration time.
type ArchiveGateway interface {
	// SaveArtifact persists an artifact and returns its metadata
	SaveArtifact(ctx context.Context, req SaveArtifactRequest) (*ArtifactMetadata, error)

	// LoadArtifact retrieves an artifact by feature and artifact ID
	LoadArtifact(ctx context.Context, featureID, artifactID string) (*Artifact, error)

	// ListArtifacts lists artifacts recorded for a feature
	ListArtifacts(ctx context.Context, featureID string) ([]*ArtifactMetadata, error)
}

// ArtifactType categorizes a stored artifact
type ArtifactType string

const (
	ArtifactTypeTranscript ArtifactType = "transcript" // Raw session transcript
	ArtifactTypeReport     ArtifactType = "report"     // Verification report
	ArtifactTypeLog        ArtifactType = "log"        // Rotated progress log
)

// SaveArtifactRequest represents a request to save an artifact
type SaveArtifactRequest struct {
	FeatureID    string            // Associated feature
	SessionID    string            // Session that produced the artifact
	ArtifactType ArtifactType      // Kind of artifact
	Content      []byte            // Artifact content
	ContentType  string            // MIME type (optional)
	Metadata     map[string]string // Additional metadata
}

// Artifact is a stored artifact with its content
type Artifact struct {
	ID       string
	Content  []byte
	Metadata ArtifactMetadata
}

// ArtifactMetadata describes a stored artifact
type ArtifactMetadata struct {
	ID          string
	FeatureID   string
	SessionID   string
	Type        ArtifactType
	StoragePath string // e.g. s3://bucket/key or a local path
	ContentType string
	Size        int64
	UploadedAt  time.Time
	Metadata    map[string]string
}
