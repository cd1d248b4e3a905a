// Package storage opens CSV objects from the object stores the ingest
// service can be notified about. Each backend implements
// domain.ObjectReader; Router dispatches on the URI scheme.
package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"csv-ingest/internal/domain"
)

// Compile-time checks.
var (
	_ domain.ObjectReader = (*Router)(nil)
	_ domain.ObjectReader = (*GCSReader)(nil)
	_ domain.ObjectReader = (*S3Reader)(nil)
	_ domain.ObjectReader = (*AzureReader)(nil)
	_ domain.ObjectReader = (*LocalReader)(nil)
)

// Router dispatches Open calls to the reader registered for the URI scheme.
type Router struct {
	readers map[string]domain.ObjectReader
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{readers: map[string]domain.ObjectReader{}}
}

// Register binds scheme (without "://") to reader, replacing any previous binding.
func (r *Router) Register(scheme string, reader domain.ObjectReader) {
	r.readers[strings.ToLower(scheme)] = reader
}

// Schemes returns the registered schemes in sorted order.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.readers))
	for s := range r.readers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open implements domain.ObjectReader.
func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, _, _, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	reader, ok := r.readers[scheme]
	if !ok {
		return nil, fmt.Errorf("no storage backend for scheme %q (have %v)", scheme, r.Schemes())
	}
	return reader.Open(ctx, uri)
}

// ParseURI splits "scheme://bucket/key" into its parts. The key is taken
// verbatim, so object names containing '?', '#' or '%' survive.
func ParseURI(uri string) (scheme, bucket, key string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return "", "", "", fmt.Errorf("missing scheme in %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", "", fmt.Errorf("empty bucket in %q", uri)
	}
	if key == "" {
		return "", "", "", fmt.Errorf("empty key in %q", uri)
	}
	return strings.ToLower(scheme), bucket, key, nil
}

// parseSchemeURI is ParseURI restricted to one scheme.
func parseSchemeURI(uri, want string) (bucket, key string, err error) {
	scheme, bucket, key, err := ParseURI(uri)
	if err != nil {
		return "", "", err
	}
	if scheme != want {
		return "", "", fmt.Errorf("expected %s:// scheme, got %q in %q", want, scheme, uri)
	}
	return bucket, key, nil
}
