package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalReader serves "file://bucket/key" from root/bucket/key. It backs local
// development and the one-shot load command.
type LocalReader struct {
	root string
}

// NewLocalReader creates a LocalReader rooted at root.
func NewLocalReader(root string) *LocalReader {
	return &LocalReader{root: root}
}

// Open implements domain.ObjectReader.
func (l *LocalReader) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseSchemeURI(uri, "file")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(l.root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %q escapes storage root", uri)
	}
	f, err := os.Open(path) //nolint:gosec // confined to root above
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return f, nil
}
