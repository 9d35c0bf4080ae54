package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	"gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob" // S3 driver
)

// BlobStore writes artifacts to a gocloud.dev bucket.
type BlobStore struct {
	bucket  *blob.Bucket
	display string // scheme://bucket
	prefix  string
}

// NewBlobStore wraps an open bucket.
func NewBlobStore(bucket *blob.Bucket, display, prefix string) *BlobStore {
	return &BlobStore{bucket: bucket, display: display, prefix: prefix}
}

// NewGCSStore opens a Google Cloud Storage bucket.
func NewGCSStore(ctx context.Context, bucketName, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("gs://%s", bucketName))
	if err != nil {
		return nil, fmt.Errorf("open GCS bucket %s: %w", bucketName, err)
	}
	return NewBlobStore(bucket, "gs://"+bucketName, prefix), nil
}

// NewS3Store opens an S3-compatible bucket.
// Works with AWS S3, Backblaze B2, Cloudflare R2, and MinIO.
func NewS3Store(ctx context.Context, bucketName, prefix, endpoint, region string) (*BlobStore, error) {
	bucketURL := fmt.Sprintf("s3://%s", bucketName)

	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
		params.Set("use_path_style", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", bucketName, err)
	}
	return NewBlobStore(bucket, "s3://"+bucketName, prefix), nil
}

// NewMemStore returns a store backed by an in-memory bucket.
func NewMemStore(prefix string) *BlobStore {
	return NewBlobStore(memblob.OpenBucket(nil), "mem://artifacts", prefix)
}

// Write uploads data to a temporary key, then copies it into place and
// removes the temporary object.
func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	tempKey := key + ".tmp." + uuid.New().String()

	if err := s.bucket.WriteAll(ctx, tempKey, data, nil); err != nil {
		return fmt.Errorf("write %s: %w", tempKey, err)
	}
	if err := s.copyObject(ctx, tempKey, key); err != nil {
		s.bucket.Delete(ctx, tempKey)
		return fmt.Errorf("finalize %s -> %s: %w", tempKey, key, err)
	}
	s.bucket.Delete(ctx, tempKey) // ignore errors
	return nil
}

// copyObject copies an object within the bucket.
func (s *BlobStore) copyObject(ctx context.Context, srcKey, dstKey string) error {
	r, err := s.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	w, err := s.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}
	return w.Close()
}

// Exists checks if key has been written.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, key)
}

// ReadAll returns the object at key.
func (s *BlobStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	return s.bucket.ReadAll(ctx, key)
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return s.display + "/" + key
}

// Prefix implements ArtifactStore.
func (s *BlobStore) Prefix() string { return s.prefix }

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

var _ ArtifactStore = (*BlobStore)(nil)
