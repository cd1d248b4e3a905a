package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureReader reads blobs from Azure Blob Storage. URIs take the form
// "az://container/blob".
type AzureReader struct {
	client *azblob.Client
}

// NewAzureReader creates a reader using shared-key authentication. An empty
// serviceURL resolves to the public endpoint of accountName.
func NewAzureReader(accountName, accountKey, serviceURL string) (*AzureReader, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure account name and key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureReader{client: client}, nil
}

// Open implements domain.ObjectReader.
func (a *AzureReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	container, blob, err := parseSchemeURI(uri, "az")
	if err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("object %s does not exist: %w", uri, err)
		}
		return nil, fmt.Errorf("download %s: %w", uri, err)
	}
	return resp.Body, nil
}
