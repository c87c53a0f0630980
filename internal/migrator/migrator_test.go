package migrator

import (
	"context"
	"strings"
	"testing"

	"github.com/flowstore/flowstore/internal/profile"
	"github.com/flowstore/flowstore/internal/repository"
)

// newMemoryMigrator wires a migrator to a single shared in-memory backend so
// lifecycle semantics can be asserted without cloud credentials.
func newMemoryMigrator(reset resetStrategy) (*migrator, *repository.MemoryBackend) {
	backend := repository.NewMemoryBackend("mem-location")
	m := &migrator{
		factory: func(ctx context.Context) (repository.Backend, error) {
			return backend, nil
		},
		reset: reset,
	}
	return m, backend
}

func seedObjects(t *testing.T, backend *repository.MemoryBackend, n int) {
	t.Helper()
	ctx := context.Background()
	if err := backend.Initialise(ctx); err != nil {
		t.Fatalf("Initialise failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := backend.PutObjectFromFilelike(ctx, strings.NewReader("x")); err != nil {
			t.Fatalf("PutObjectFromFilelike failed: %v", err)
		}
	}
}

func TestResetRepositoryDestroyErasesLocation(t *testing.T) {
	m, backend := newMemoryMigrator(resetDestroy)
	seedObjects(t, backend, 3)
	ctx := context.Background()

	if err := m.ResetRepository(ctx); err != nil {
		t.Fatalf("ResetRepository failed: %v", err)
	}

	initialised, err := backend.IsInitialised(ctx)
	if err != nil {
		t.Fatalf("IsInitialised failed: %v", err)
	}
	if initialised {
		t.Error("destroy reset should leave the location uninitialised")
	}
}

func TestResetRepositoryDrainKeepsLocation(t *testing.T) {
	m, backend := newMemoryMigrator(resetDrain)
	seedObjects(t, backend, 3)
	ctx := context.Background()

	if err := m.ResetRepository(ctx); err != nil {
		t.Fatalf("ResetRepository failed: %v", err)
	}

	initialised, err := backend.IsInitialised(ctx)
	if err != nil {
		t.Fatalf("IsInitialised failed: %v", err)
	}
	if !initialised {
		t.Error("drain reset should keep the location initialised")
	}
	keys, err := backend.ListObjects(ctx)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("drain reset left %d objects, want 0", len(keys))
	}
}

func TestResetRepositoryUninitialisedNoop(t *testing.T) {
	m, backend := newMemoryMigrator(resetDestroy)
	ctx := context.Background()

	if err := m.ResetRepository(ctx); err != nil {
		t.Fatalf("ResetRepository on uninitialised repository should be a no-op, got: %v", err)
	}
	initialised, _ := backend.IsInitialised(ctx)
	if initialised {
		t.Error("no-op reset must not initialise the repository")
	}
}

func TestInitialiseRepositoryIdempotent(t *testing.T) {
	m, _ := newMemoryMigrator(resetDestroy)
	ctx := context.Background()

	if err := m.InitialiseRepository(ctx); err != nil {
		t.Fatalf("InitialiseRepository failed: %v", err)
	}
	if err := m.InitialiseRepository(ctx); err != nil {
		t.Fatalf("second InitialiseRepository failed: %v", err)
	}

	initialised, err := m.IsRepositoryInitialised(ctx)
	if err != nil {
		t.Fatalf("IsRepositoryInitialised failed: %v", err)
	}
	if !initialised {
		t.Error("IsRepositoryInitialised = false after initialise")
	}
}

func TestForProfileDispatch(t *testing.T) {
	tests := []struct {
		backend string
		config  map[string]string
	}{
		{profile.BackendS3, map[string]string{
			"endpoint_url":      "http://localhost:9000",
			"access_key_id":     "ak",
			"secret_access_key": "sk",
			"bucket_name":       "bucket",
		}},
		{profile.BackendAWSS3, map[string]string{
			"aws_access_key_id":     "ak",
			"aws_secret_access_key": "sk",
			"aws_region_name":       "eu-central-1",
			"aws_bucket_name":       "bucket",
		}},
		{profile.BackendAzureBlob, map[string]string{
			"container_name":    "container",
			"connection_string": testConnectionString,
		}},
	}
	for _, tt := range tests {
		p := &profile.Profile{
			Name: "test",
			Storage: profile.StorageConfig{
				Backend: tt.backend,
				Config:  tt.config,
			},
		}
		if _, err := ForProfile(p); err != nil {
			t.Errorf("ForProfile(%s) failed: %v", tt.backend, err)
		}
	}
}

func TestForProfileUnknownBackend(t *testing.T) {
	p := &profile.Profile{
		Name:    "test",
		Storage: profile.StorageConfig{Backend: "tape-archive"},
	}
	if _, err := ForProfile(p); err == nil {
		t.Error("ForProfile with an unknown backend kind should fail")
	}
}

func TestNewS3MigratorMissingKey(t *testing.T) {
	p := &profile.Profile{
		Name: "incomplete",
		Storage: profile.StorageConfig{
			Backend: profile.BackendS3,
			Config: map[string]string{
				"endpoint_url":  "http://localhost:9000",
				"access_key_id": "ak",
				// secret_access_key and bucket_name absent
			},
		},
	}
	_, err := NewS3Migrator(p)
	if err == nil {
		t.Fatal("NewS3Migrator with missing keys should fail")
	}
	if !strings.Contains(err.Error(), "secret_access_key") {
		t.Errorf("error should name the missing key, got: %v", err)
	}
}

// testConnectionString parses without any network interaction.
const testConnectionString = "DefaultEndpointsProtocol=https;AccountName=testaccount;AccountKey=dGVzdGtleQ==;EndpointSuffix=core.windows.net"

func TestAzureBlobMigratorUUIDWithoutNetwork(t *testing.T) {
	p := &profile.Profile{
		Name: "azure",
		Storage: profile.StorageConfig{
			Backend: profile.BackendAzureBlob,
			Config: map[string]string{
				"container_name":    "workflow-objects",
				"connection_string": testConnectionString,
			},
		},
	}
	m, err := NewAzureBlobMigrator(p)
	if err != nil {
		t.Fatalf("NewAzureBlobMigrator failed: %v", err)
	}

	uuid, err := m.GetRepositoryUUID(context.Background())
	if err != nil {
		t.Fatalf("GetRepositoryUUID failed: %v", err)
	}
	if uuid != "workflow-objects" {
		t.Errorf("GetRepositoryUUID = %q, want %q", uuid, "workflow-objects")
	}
}

func TestGetRepositoryReturnsFreshInstances(t *testing.T) {
	p := &profile.Profile{
		Name: "azure",
		Storage: profile.StorageConfig{
			Backend: profile.BackendAzureBlob,
			Config: map[string]string{
				"container_name":    "workflow-objects",
				"connection_string": testConnectionString,
			},
		},
	}
	m, err := NewAzureBlobMigrator(p)
	if err != nil {
		t.Fatalf("NewAzureBlobMigrator failed: %v", err)
	}

	ctx := context.Background()
	first, err := m.GetRepository(ctx)
	if err != nil {
		t.Fatalf("GetRepository failed: %v", err)
	}
	second, err := m.GetRepository(ctx)
	if err != nil {
		t.Fatalf("second GetRepository failed: %v", err)
	}
	if first == second {
		t.Error("GetRepository should fabricate a fresh instance per call")
	}
	if first.UUID() != second.UUID() {
		t.Error("fresh instances must be functionally equivalent")
	}
}
