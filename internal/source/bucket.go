package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/memblob" // in-memory driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
)

// BucketSource lists exports under a bucket prefix.
type BucketSource struct {
	bucket  *blob.Bucket
	prefix  string
	display string
}

// NewBucketSource wraps an open bucket. display is the scheme://bucket
// part used to build input locations.
func NewBucketSource(bucket *blob.Bucket, prefix, display string) *BucketSource {
	return &BucketSource{bucket: bucket, prefix: prefix, display: display}
}

// openBucketSource opens a bucket URL of the form scheme://bucket/prefix?params.
func openBucketSource(ctx context.Context, location string) (*BucketSource, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse input URL %s: %w", location, err)
	}
	prefix := strings.TrimPrefix(u.Path, "/")

	bucketURL := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	bucket, err := blob.OpenBucket(ctx, bucketURL.String())
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", u.Host, err)
	}

	log.Printf("[source:%s] reading inputs from bucket %s prefix %q", u.Scheme, u.Host, prefix)
	return NewBucketSource(bucket, prefix, u.Scheme+"://"+u.Host), nil
}

// List implements Source.List. A prefix that names a single object is a
// one-element batch; otherwise only direct children ending in .csv are
// returned, in key order.
func (s *BucketSource) List(ctx context.Context) ([]Input, error) {
	if s.prefix != "" && !strings.HasSuffix(s.prefix, "/") {
		exists, err := s.bucket.Exists(ctx, s.prefix)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", s.prefix, err)
		}
		if exists {
			return []Input{s.input(s.prefix)}, nil
		}
	}

	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var inputs []Input
	found := false
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		found = true
		if obj.IsDir || !IsCSV(obj.Key) {
			continue
		}
		inputs = append(inputs, s.input(obj.Key))
	}

	if !found && prefix != "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.display, prefix)
	}
	return inputs, nil
}

// Close releases the bucket.
func (s *BucketSource) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

func (s *BucketSource) input(key string) Input {
	return Input{
		Name:     path.Base(key),
		Location: s.display + "/" + key,
		load: func(ctx context.Context) ([]byte, error) {
			return s.bucket.ReadAll(ctx, key)
		},
	}
}
