// Package migrator binds profiles to repository backends and exposes the
// repository lifecycle operations consumed by the metadata-store migration
// machinery.
//
// A migrator performs no storage logic itself: it reads a profile's storage
// configuration, fabricates the matching backend, and delegates. A fresh,
// functionally equivalent backend instance (same location, same credentials)
// is constructed on every call; nothing is cached or pooled, so one process
// can hold migrators for profiles with different credentials concurrently.
//
// Resetting a repository has two deliberately distinct strategies. The
// S3-family migrators destroy: they erase the bucket outright. The Azure
// migrator drains: it deletes every object but keeps the container, avoiding
// container recreation overhead. The asymmetry is inherited behavior and is
// kept explicit here rather than unified.
package migrator

import (
	"context"
	"fmt"

	"github.com/flowstore/flowstore/internal/profile"
	"github.com/flowstore/flowstore/internal/repository"
)

// Migrator exposes the repository lifecycle operations for one profile.
type Migrator interface {
	// GetRepository constructs and returns the profile's repository backend.
	// Every call produces a fresh, functionally equivalent instance.
	GetRepository(ctx context.Context) (repository.Backend, error)

	// GetRepositoryUUID returns the stable identifier of the profile's
	// repository (the bucket or container name).
	GetRepositoryUUID(ctx context.Context) (string, error)

	// IsRepositoryInitialised reports whether the repository's location
	// exists.
	IsRepositoryInitialised(ctx context.Context) (bool, error)

	// InitialiseRepository creates the repository's location if it does not
	// exist. Idempotent.
	InitialiseRepository(ctx context.Context) error

	// ResetRepository empties the repository if it is initialised, using the
	// backend's reset strategy (destroy or drain). No-op when
	// uninitialised.
	ResetRepository(ctx context.Context) error
}

// backendFactory fabricates one backend instance from profile configuration.
type backendFactory func(ctx context.Context) (repository.Backend, error)

// resetStrategy empties an initialised repository.
type resetStrategy func(ctx context.Context, backend repository.Backend) error

// migrator is the shared profile-to-backend binding; concrete constructors
// differ only in factory and reset strategy.
type migrator struct {
	profile *profile.Profile
	factory backendFactory
	reset   resetStrategy
}

// GetRepository constructs the profile's repository backend.
func (m *migrator) GetRepository(ctx context.Context) (repository.Backend, error) {
	return m.factory(ctx)
}

// GetRepositoryUUID returns the repository's stable identifier.
func (m *migrator) GetRepositoryUUID(ctx context.Context) (string, error) {
	backend, err := m.factory(ctx)
	if err != nil {
		return "", err
	}
	return backend.UUID(), nil
}

// IsRepositoryInitialised reports whether the repository's location exists.
func (m *migrator) IsRepositoryInitialised(ctx context.Context) (bool, error) {
	backend, err := m.factory(ctx)
	if err != nil {
		return false, err
	}
	return backend.IsInitialised(ctx)
}

// InitialiseRepository creates the repository's location if absent.
func (m *migrator) InitialiseRepository(ctx context.Context) error {
	backend, err := m.factory(ctx)
	if err != nil {
		return err
	}
	return backend.Initialise(ctx)
}

// ResetRepository empties the repository if it is initialised.
func (m *migrator) ResetRepository(ctx context.Context) error {
	backend, err := m.factory(ctx)
	if err != nil {
		return err
	}
	initialised, err := backend.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if !initialised {
		return nil
	}
	return m.reset(ctx, backend)
}

// resetDestroy erases the location itself, contents included.
func resetDestroy(ctx context.Context, backend repository.Backend) error {
	return backend.Erase(ctx)
}

// resetDrain deletes every object but keeps the location.
func resetDrain(ctx context.Context, backend repository.Backend) error {
	keys, err := backend.ListObjects(ctx)
	if err != nil {
		return err
	}
	return backend.DeleteObjects(ctx, keys)
}

// ForProfile returns the migrator matching the profile's backend kind.
func ForProfile(p *profile.Profile) (Migrator, error) {
	switch p.Storage.Backend {
	case profile.BackendS3:
		return NewS3Migrator(p)
	case profile.BackendAWSS3:
		return NewAWSS3Migrator(p)
	case profile.BackendAzureBlob:
		return NewAzureBlobMigrator(p)
	default:
		return nil, fmt.Errorf("profile %q: unknown storage backend %q", p.Name, p.Storage.Backend)
	}
}

// NewS3Migrator creates the migrator for a generic S3-compatible profile.
// Missing required storage config keys fail here, before any backend is
// constructed.
func NewS3Migrator(p *profile.Profile) (Migrator, error) {
	endpointURL, err := p.ConfigValue("endpoint_url")
	if err != nil {
		return nil, err
	}
	accessKeyID, err := p.ConfigValue("access_key_id")
	if err != nil {
		return nil, err
	}
	secretAccessKey, err := p.ConfigValue("secret_access_key")
	if err != nil {
		return nil, err
	}
	bucketName, err := p.ConfigValue("bucket_name")
	if err != nil {
		return nil, err
	}

	factory := func(ctx context.Context) (repository.Backend, error) {
		return repository.NewS3Backend(ctx, repository.S3Config{
			EndpointURL:     endpointURL,
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			BucketName:      bucketName,
			// Non-AWS providers generally resolve buckets by path, not
			// virtual host.
			UsePathStyle: true,
		})
	}
	return &migrator{profile: p, factory: factory, reset: resetDestroy}, nil
}

// NewAWSS3Migrator creates the migrator for a native AWS S3 profile. The
// endpoint_url key is optional and overrides the AWS endpoint when present.
func NewAWSS3Migrator(p *profile.Profile) (Migrator, error) {
	accessKeyID, err := p.ConfigValue("aws_access_key_id")
	if err != nil {
		return nil, err
	}
	secretAccessKey, err := p.ConfigValue("aws_secret_access_key")
	if err != nil {
		return nil, err
	}
	region, err := p.ConfigValue("aws_region_name")
	if err != nil {
		return nil, err
	}
	bucketName, err := p.ConfigValue("aws_bucket_name")
	if err != nil {
		return nil, err
	}
	endpointURL := p.Storage.Config["endpoint_url"]

	factory := func(ctx context.Context) (repository.Backend, error) {
		return repository.NewAWSS3Backend(ctx, repository.AWSS3Config{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Region:          region,
			BucketName:      bucketName,
			EndpointURL:     endpointURL,
		})
	}
	return &migrator{profile: p, factory: factory, reset: resetDestroy}, nil
}

// NewAzureBlobMigrator creates the migrator for an Azure Blob profile. Its
// reset drains objects instead of destroying the container.
func NewAzureBlobMigrator(p *profile.Profile) (Migrator, error) {
	containerName, err := p.ConfigValue("container_name")
	if err != nil {
		return nil, err
	}
	connectionString, err := p.ConfigValue("connection_string")
	if err != nil {
		return nil, err
	}

	factory := func(ctx context.Context) (repository.Backend, error) {
		return repository.NewAzureBlobBackend(repository.AzureBlobConfig{
			ContainerName:    containerName,
			ConnectionString: connectionString,
		})
	}
	return &migrator{profile: p, factory: factory, reset: resetDrain}, nil
}
