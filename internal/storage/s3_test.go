package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Reader_Open(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path != "/landing/raw_data/x.csv" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "a,b\n1,2\n")
	}))
	t.Cleanup(srv.Close)

	r, err := NewS3Reader(context.Background(), S3Config{
		Endpoint: srv.URL,
		Region:   "us-east-1",
		KeyID:    "AKID",
		Secret:   "secret",
	})
	require.NoError(t, err)

	rc, err := r.Open(context.Background(), "s3://landing/raw_data/x.csv")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
	assert.Equal(t, "/landing/raw_data/x.csv", gotPath)

	_, err = r.Open(context.Background(), "s3://landing/raw_data/missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestNewAzureReader_RequiresCredentials(t *testing.T) {
	_, err := NewAzureReader("", "", "")
	require.Error(t, err)

	_, err = NewAzureReader("account", "not base64!", "")
	require.Error(t, err)
}
