// Package repository provides the Azure Blob Storage repository backend.
//
// The Azure backend stores each repository object as one block blob in a
// single container, keyed by its generated UUID-v4 key. It authenticates
// with a storage-account connection string and follows the SDK's service
// client / container client paradigm rather than bucket semantics. Two
// behavioral differences from the S3 family: container deletion does not
// require draining first, and listing pagination is handled inside the SDK's
// pager rather than by this layer.
package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/flowstore/flowstore/internal/logging"
	"github.com/flowstore/flowstore/internal/metrics"
	"github.com/flowstore/flowstore/internal/uid"
)

// AzureBlobAPI defines the subset of the Azure Blob Storage client interface
// that the repository backend uses, scoped to one container. This allows
// mocking in tests.
type AzureBlobAPI interface {
	// ContainerExists checks if the container exists.
	ContainerExists(ctx context.Context) (bool, error)
	// CreateContainer creates the container, attaching the given metadata.
	CreateContainer(ctx context.Context, metadata map[string]string) error
	// DeleteContainer deletes the container and all blobs it contains.
	DeleteContainer(ctx context.Context) error
	// UploadBlob uploads data to a blob, overwriting if it already exists.
	UploadBlob(ctx context.Context, blobName string, data []byte) error
	// DownloadBlobTo streams a blob's contents into w.
	DownloadBlobTo(ctx context.Context, blobName string, w io.Writer) error
	// DeleteBlob deletes a blob. Returns an error if the blob does not exist.
	DeleteBlob(ctx context.Context, blobName string) error
	// ListBlobNames returns the names of all blobs in the container. The
	// underlying SDK pager handles pagination.
	ListBlobNames(ctx context.Context) ([]string, error)
}

// AzureBlobConfig holds the construction parameters for the Azure Blob
// backend.
type AzureBlobConfig struct {
	// ContainerName is the name of the container backing this instance.
	ContainerName string
	// ConnectionString is the storage-account connection string.
	ConnectionString string
}

// AzureBlobBackend implements the Backend contract against Azure Blob
// Storage.
//
// It is possible to construct an instance for a container that doesn't exist
// yet. To use the backend, however, the container needs to exist; call
// Initialise, which creates it if it doesn't already.
type AzureBlobBackend struct {
	containerName string
	client        AzureBlobAPI
}

// NewAzureBlobBackend creates an AzureBlobBackend for the given container.
// An unparseable connection string surfaces here as a configuration error
// rather than on first use.
func NewAzureBlobBackend(cfg AzureBlobConfig) (*AzureBlobBackend, error) {
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure blob backend configuration: container_name must not be empty")
	}

	client, err := newAzureClient(cfg.ConnectionString, cfg.ContainerName)
	if err != nil {
		return nil, fmt.Errorf("azure blob backend configuration: %w", err)
	}

	logging.ForBackend("azure_blob", cfg.ContainerName).Debug("Azure Blob repository backend constructed")
	return &AzureBlobBackend{containerName: cfg.ContainerName, client: client}, nil
}

// NewAzureBlobBackendWithClient creates an AzureBlobBackend with a
// pre-configured client. This is primarily used for testing with mock
// clients.
func NewAzureBlobBackendWithClient(containerName string, client AzureBlobAPI) *AzureBlobBackend {
	return &AzureBlobBackend{containerName: containerName, client: client}
}

// String returns the string representation of this repository backend.
func (b *AzureBlobBackend) String() string {
	return fmt.Sprintf("AzureBlobBackend: <%s>", b.containerName)
}

// UUID returns the container name as the backend's stable identifier.
func (b *AzureBlobBackend) UUID() string {
	return b.containerName
}

// KeyFormat returns the format of keys generated by this backend.
func (b *AzureBlobBackend) KeyFormat() string {
	return KeyFormatUUID4
}

// IsInitialised reports whether the configured container exists.
func (b *AzureBlobBackend) IsInitialised(ctx context.Context) (bool, error) {
	exists, err := b.client.ContainerExists(ctx)
	if err != nil {
		return false, fmt.Errorf("probing container %q: %w", b.containerName, err)
	}
	return exists, nil
}

// Initialise creates the container if it doesn't already exist. Calling it
// on an already-initialised backend is a no-op. Option metadata is passed
// through to the container create call.
func (b *AzureBlobBackend) Initialise(ctx context.Context, opts ...InitialiseOption) error {
	initialised, err := b.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if initialised {
		return nil
	}

	var options InitialiseOptions
	for _, opt := range opts {
		opt(&options)
	}

	if err := b.client.CreateContainer(ctx, options.Metadata); err != nil {
		return fmt.Errorf("creating container %q: %w", b.containerName, err)
	}

	logging.ForBackend("azure_blob", b.containerName).Info("repository initialised")
	return nil
}

// Erase deletes the container configured for this instance and all its
// contents. Azure deletes non-empty containers, so no drain is needed.
// No-op when the container does not exist.
func (b *AzureBlobBackend) Erase(ctx context.Context) error {
	initialised, err := b.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if !initialised {
		return nil
	}

	if err := b.client.DeleteContainer(ctx); err != nil {
		return fmt.Errorf("deleting container %q: %w", b.containerName, err)
	}

	logging.ForBackend("azure_blob", b.containerName).Info("repository erased")
	return nil
}

// PutObjectFromFilelike uploads the full content of the byte stream under a
// freshly generated UUID-v4 key and returns the key.
func (b *AzureBlobBackend) PutObjectFromFilelike(ctx context.Context, handle io.Reader) (key string, err error) {
	if err := validateHandle(handle); err != nil {
		return "", err
	}
	defer func() { metrics.ObserveOperation("azure_blob", "put_object", err) }()

	data, err := io.ReadAll(handle)
	if err != nil {
		return "", fmt.Errorf("reading object content: %w", err)
	}

	key = uid.NewKey()
	if err = b.client.UploadBlob(ctx, key, data); err != nil {
		return "", fmt.Errorf("uploading blob to container %q: %w", b.containerName, err)
	}

	metrics.ObjectSize.WithLabelValues("azure_blob").Observe(float64(len(data)))
	return key, nil
}

// HasObjects reports, for each key, whether a blob with that name exists,
// computed against the complete listing.
func (b *AzureBlobBackend) HasObjects(ctx context.Context, keys []string) (result []bool, err error) {
	defer func() { metrics.ObserveOperation("azure_blob", "has_objects", err) }()

	existing, err := b.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	return membership(keys, existing), nil
}

// Open returns a seekable reader over the blob's full content, buffered in a
// local temporary file that is released on Close. A missing blob yields a
// *NotFoundError.
func (b *AzureBlobBackend) Open(ctx context.Context, key string) (reader ObjectReader, err error) {
	defer func() { metrics.ObserveOperation("azure_blob", "open", err) }()

	reader, err = newTempObjectReader(func(w io.Writer) error {
		return b.client.DownloadBlobTo(ctx, key, w)
	})
	if err != nil {
		if isAzureNotFound(err) {
			return nil, &NotFoundError{Key: key, Err: err}
		}
		return nil, fmt.Errorf("downloading blob %q from container %q: %w", key, b.containerName, err)
	}
	return reader, nil
}

// IterObjectStreams invokes fn once per requested key, in order, with a
// scoped reader over that object's content.
func (b *AzureBlobBackend) IterObjectStreams(ctx context.Context, keys []string, fn func(key string, r io.ReadSeeker) error) error {
	return iterObjectStreams(ctx, b, keys, fn)
}

// DeleteObjects deletes the listed blobs. The Azure SDK exposes no batch
// delete on this surface, so blobs are deleted one by one; a blob that is
// already gone is not an error. Empty input is a no-op with no network call.
func (b *AzureBlobBackend) DeleteObjects(ctx context.Context, keys []string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	defer func() { metrics.ObserveOperation("azure_blob", "delete_objects", err) }()

	for _, key := range keys {
		if deleteErr := b.client.DeleteBlob(ctx, key); deleteErr != nil {
			if isAzureNotFound(deleteErr) {
				continue
			}
			return fmt.Errorf("deleting blob %q from container %q: %w", key, b.containerName, deleteErr)
		}
	}
	return nil
}

// ListObjects returns every blob name currently stored. Pagination is the
// SDK pager's responsibility, not this layer's.
func (b *AzureBlobBackend) ListObjects(ctx context.Context) (keys []string, err error) {
	defer func() { metrics.ObserveOperation("azure_blob", "list_objects", err) }()

	names, err := b.client.ListBlobNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing blobs in container %q: %w", b.containerName, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Maintain performs maintenance operations. The Azure backend has nothing to
// maintain; it returns an empty report.
func (b *AzureBlobBackend) Maintain(ctx context.Context, opts MaintainOptions) (MaintenanceReport, error) {
	return MaintenanceReport{}, nil
}

// GetInfo returns information on configuration and content of the
// repository. The Azure backend currently returns an empty report.
func (b *AzureBlobBackend) GetInfo(ctx context.Context, detailed bool) (InfoReport, error) {
	return InfoReport{}, nil
}

// Ensure AzureBlobBackend implements Backend at compile time.
var _ Backend = (*AzureBlobBackend)(nil)
