package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

// S3ArchiveGateway stores session artifacts in an S3 bucket.
// Key layout: <prefix>/artifacts/<featureID>/<artifactID>/{content,metadata.json}
type S3ArchiveGateway struct {
	client S3API
	bucket string
	prefix string
}

// S3Config holds S3 archive configuration
type S3Config struct {
	Bucket string
	Prefix string
	Region string // optional, falls back to the SDK default chain
}

// NewS3ArchiveGateway creates an archive gateway using the default AWS
// credential chain
func NewS3ArchiveGateway(cfg S3Config) (*S3ArchiveGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return &S3ArchiveGateway{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewS3ArchiveGatewayWithClient injects a custom S3 client, used by tests
func NewS3ArchiveGatewayWithClient(client S3API, bucket, prefix string) *S3ArchiveGateway {
	return &S3ArchiveGateway{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// SaveArtifact uploads the artifact content and a metadata.json sidecar
func (g *S3ArchiveGateway) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	artifactID := newArtifactID()
	contentKey := g.buildKey("artifacts", req.FeatureID, artifactID, "content")

	s3Metadata := map[string]string{
		"artifact-id":   artifactID,
		"feature-id":    req.FeatureID,
		"session-id":    req.SessionID,
		"artifact-type": string(req.ArtifactType),
		"uploaded-at":   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range req.Metadata {
		s3Metadata[k] = v
	}

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(contentKey),
		Body:        bytes.NewReader(req.Content),
		ContentType: aws.String(req.ContentType),
		Metadata:    s3Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("upload artifact to S3: %w", err)
	}

	metadata := output.ArtifactMetadata{
		ID:          artifactID,
		FeatureID:   req.FeatureID,
		SessionID:   req.SessionID,
		Type:        req.ArtifactType,
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucket, contentKey),
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		UploadedAt:  time.Now().UTC(),
		Metadata:    req.Metadata,
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	metadataKey := g.buildKey("artifacts", req.FeatureID, artifactID, "metadata.json")
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(metadataKey),
		Body:        bytes.NewReader(metadataJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload metadata to S3: %w", err)
	}

	return &metadata, nil
}

// LoadArtifact downloads an artifact and its metadata
func (g *S3ArchiveGateway) LoadArtifact(ctx context.Context, featureID, artifactID string) (*output.Artifact, error) {
	metadataKey := g.buildKey("artifacts", featureID, artifactID, "metadata.json")

	metadataObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(metadataKey),
	})
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %s/%s: %w", featureID, artifactID, err)
	}
	defer metadataObj.Body.Close()

	metadataJSON, err := io.ReadAll(metadataObj.Body)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var metadata output.ArtifactMetadata
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	contentKey := g.buildKey("artifacts", featureID, artifactID, "content")
	contentObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(contentKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download content from S3: %w", err)
	}
	defer contentObj.Body.Close()

	content, err := io.ReadAll(contentObj.Body)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return &output.Artifact{
		ID:       artifactID,
		Content:  content,
		Metadata: metadata,
	}, nil
}

// ListArtifacts lists artifact metadata stored for a feature
func (g *S3ArchiveGateway) ListArtifacts(ctx context.Context, featureID string) ([]*output.ArtifactMetadata, error) {
	prefix := g.buildKey("artifacts", featureID) + "/"

	listOutput, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list S3 objects: %w", err)
	}

	var metadataList []*output.ArtifactMetadata
	for _, obj := range listOutput.Contents {
		key := aws.ToString(obj.Key)
		if !strings.HasSuffix(key, "metadata.json") {
			continue
		}

		metadataObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			continue
		}
		metadataJSON, err := io.ReadAll(metadataObj.Body)
		metadataObj.Body.Close()
		if err != nil {
			continue
		}

		var metadata output.ArtifactMetadata
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			continue
		}
		metadataList = append(metadataList, &metadata)
	}

	return metadataList, nil
}

// DeleteArtifact removes an artifact's content and metadata objects
func (g *S3ArchiveGateway) DeleteArtifact(ctx context.Context, featureID, artifactID string) error {
	for _, name := range []string{"content", "metadata.json"} {
		key := g.buildKey("artifacts", featureID, artifactID, name)
		_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("delete %s from S3: %w", name, err)
		}
	}
	return nil
}

// buildKey joins key parts under the configured prefix
func (g *S3ArchiveGateway) buildKey(parts ...string) string {
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}
