// Package gcs archives snapshots in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
)

// Store uploads snapshots to one bucket under an optional key prefix.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS client and verifies bucket access so misconfiguration
// surfaces at startup, not mid-run. Authentication uses Application Default
// Credentials.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %q attributes: %w", bucket, err)
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *Store) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	name := key
	if s.prefix != "" {
		name = path.Join(s.prefix, key)
	}
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write gcs object %s: %w", name, err)
	}
	// Close finalizes the upload; the object does not exist until it returns.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
