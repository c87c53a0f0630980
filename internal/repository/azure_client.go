package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// azureClient wraps the official Azure SDK client to satisfy AzureBlobAPI,
// scoped to one container.
type azureClient struct {
	client        *azblob.Client
	containerName string
}

// newAzureClient creates a real Azure Blob client from a storage-account
// connection string. A malformed connection string fails here, synchronously.
func newAzureClient(connectionString, containerName string) (*azureClient, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect with the given connection string: %w", err)
	}
	return &azureClient{client: client, containerName: containerName}, nil
}

// containerClient returns the container-scoped client for this instance.
func (c *azureClient) containerClient() *container.Client {
	return c.client.ServiceClient().NewContainerClient(c.containerName)
}

func (c *azureClient) ContainerExists(ctx context.Context) (bool, error) {
	_, err := c.containerClient().GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *azureClient) CreateContainer(ctx context.Context, metadata map[string]string) error {
	var opts *azblob.CreateContainerOptions
	if len(metadata) > 0 {
		md := make(map[string]*string, len(metadata))
		for k, v := range metadata {
			md[k] = to.Ptr(v)
		}
		opts = &azblob.CreateContainerOptions{Metadata: md}
	}
	_, err := c.client.CreateContainer(ctx, c.containerName, opts)
	return err
}

func (c *azureClient) DeleteContainer(ctx context.Context) error {
	_, err := c.client.DeleteContainer(ctx, c.containerName, nil)
	return err
}

func (c *azureClient) UploadBlob(ctx context.Context, blobName string, data []byte) error {
	_, err := c.client.UploadBuffer(ctx, c.containerName, blobName, data, nil)
	return err
}

func (c *azureClient) DownloadBlobTo(ctx context.Context, blobName string, w io.Writer) error {
	resp, err := c.client.DownloadStream(ctx, c.containerName, blobName, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *azureClient) DeleteBlob(ctx context.Context, blobName string) error {
	_, err := c.client.DeleteBlob(ctx, c.containerName, blobName, nil)
	return err
}

func (c *azureClient) ListBlobNames(ctx context.Context) ([]string, error) {
	names := []string{}
	pager := c.client.NewListBlobsFlatPager(c.containerName, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// isAzureNotFound checks if an Azure error signals a missing blob or
// container. Only those error classes are translated; auth and transport
// failures are left for the caller.
func isAzureNotFound(err error) bool {
	if isContextError(err) {
		return false
	}
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}

// Ensure azureClient implements AzureBlobAPI at compile time.
var _ AzureBlobAPI = (*azureClient)(nil)
