// Package storage writes run artifacts and their manifests to a local
// directory or an object store bucket.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Artifact name prefixes.
const (
	ArtifactPrefix     = "TA_processed_"
	TestArtifactPrefix = "TA_processed_TEST_"
	TimestampLayout    = "20060102_150405"
)

// ArtifactRef names the artifacts of one run.
type ArtifactRef struct {
	RunTime time.Time
	// Test marks a run that did not persist to the store.
	Test bool
}

// BaseName returns the artifact name without extension, for example
// TA_processed_20240101_120000.
func (r ArtifactRef) BaseName() string {
	prefix := ArtifactPrefix
	if r.Test {
		prefix = TestArtifactPrefix
	}
	return prefix + r.RunTime.Format(TimestampLayout)
}

// Key returns the storage key for an artifact with extension ext.
func (r ArtifactRef) Key(prefix, ext string) string {
	return prefix + r.BaseName() + ext
}

// ManifestKey returns the storage key of the run manifest.
func (r ArtifactRef) ManifestKey(prefix string) string {
	return prefix + r.BaseName() + "_manifest.json"
}

// Manifest describes the artifacts written by one run.
type Manifest struct {
	Run       RunInfo                 `json:"run"`
	Artifacts map[string]ArtifactInfo `json:"artifacts"`
	Producer  ProducerInfo            `json:"producer"`
	CreatedAt time.Time               `json:"created_at"`
}

// RunInfo identifies the run that produced the artifacts.
type RunInfo struct {
	RunID         string   `json:"run_id"`
	Input         string   `json:"input"`
	Persist       bool     `json:"persist"`
	FilesTotal    int      `json:"files_total"`
	FilesOK       int      `json:"files_ok"`
	SkippedFiles  []string `json:"skipped_files,omitempty"`
	SchemaVersion string   `json:"schema_version"`
}

// ArtifactInfo describes a single artifact file.
type ArtifactInfo struct {
	File     string `json:"file"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
}

// ProducerInfo describes the software that produced the artifacts.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// ArtifactStore abstracts where artifacts are written.
type ArtifactStore interface {
	// Write publishes data under key. Readers never observe a partial
	// object.
	Write(ctx context.Context, key string, data []byte) error

	// Exists reports whether key has been published.
	Exists(ctx context.Context, key string) (bool, error)

	// URI returns the canonical URI for key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Prefix is prepended to every artifact key.
	Prefix() string

	Close() error
}

// WriteManifest marshals m and writes it next to the artifacts of ref.
func WriteManifest(ctx context.Context, s ArtifactStore, ref ArtifactRef, m *Manifest) (string, error) {
	data, err := m.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	key := ref.ManifestKey(s.Prefix())
	if err := s.Write(ctx, key, data); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return key, nil
}

// Config configures the artifact backend.
type Config struct {
	Backend string `yaml:"backend"` // "local" | "gcs" | "s3" | "mem"

	// Local filesystem
	LocalDir string `yaml:"dir"`

	// Bucket backends
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"` // custom endpoint for B2/MinIO/R2
	Region   string `yaml:"region"`

	// Prefix is the path prefix within the bucket or local dir.
	Prefix string `yaml:"prefix"`
}

// NewArtifactStore creates a storage backend based on configuration.
func NewArtifactStore(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "local", "":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("output dir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for gcs backend")
		}
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 backend")
		}
		return NewS3Store(ctx, cfg.Bucket, cfg.Prefix, cfg.Endpoint, cfg.Region)
	case "mem":
		return NewMemStore(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
