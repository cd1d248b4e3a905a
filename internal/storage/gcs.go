package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSReader reads objects from Google Cloud Storage ("gs://bucket/key").
type GCSReader struct {
	client *storage.Client
}

// NewGCSReader creates a GCS reader. With an empty keyFile the client uses
// Application Default Credentials (the runtime service account on Cloud Run).
func NewGCSReader(ctx context.Context, keyFile string) (*GCSReader, error) {
	var opts []option.ClientOption
	if keyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSReader{client: client}, nil
}

// Open implements domain.ObjectReader.
func (g *GCSReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseSchemeURI(uri, "gs")
	if err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("object %s does not exist: %w", uri, err)
		}
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return r, nil
}

// Close releases the underlying client.
func (g *GCSReader) Close() error {
	return g.client.Close()
}
