// Package repository provides an in-memory repository backend.
//
// MemoryBackend implements the full Backend contract against process-local
// maps. It exists for hermetic tests of code that consumes a repository (the
// migrator, host applications) without any cloud credentials. The lifecycle
// semantics match the cloud backends, including initialise/erase idempotency.
package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/flowstore/flowstore/internal/uid"
)

// MemoryBackend implements the Backend contract using an in-memory map.
// Safe for concurrent use.
type MemoryBackend struct {
	locationName string

	mu          sync.RWMutex
	initialised bool
	objects     map[string][]byte
}

// NewMemoryBackend creates a MemoryBackend identified by the given location
// name. The backend starts uninitialised, like a cloud backend whose bucket
// does not exist yet.
func NewMemoryBackend(locationName string) *MemoryBackend {
	return &MemoryBackend{
		locationName: locationName,
		objects:      make(map[string][]byte),
	}
}

// String returns the string representation of this repository backend.
func (b *MemoryBackend) String() string {
	return fmt.Sprintf("MemoryBackend: <%s>", b.locationName)
}

// UUID returns the location name as the backend's stable identifier.
func (b *MemoryBackend) UUID() string {
	return b.locationName
}

// KeyFormat returns the format of keys generated by this backend.
func (b *MemoryBackend) KeyFormat() string {
	return KeyFormatUUID4
}

// IsInitialised reports whether the location exists.
func (b *MemoryBackend) IsInitialised(ctx context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialised, nil
}

// Initialise creates the location if it does not exist. Idempotent.
func (b *MemoryBackend) Initialise(ctx context.Context, opts ...InitialiseOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialised = true
	return nil
}

// Erase deletes the location and all its contents. No-op when
// uninitialised.
func (b *MemoryBackend) Erase(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialised {
		return nil
	}
	b.initialised = false
	b.objects = make(map[string][]byte)
	return nil
}

// PutObjectFromFilelike stores the full content of the byte stream under a
// freshly generated UUID-v4 key and returns the key.
func (b *MemoryBackend) PutObjectFromFilelike(ctx context.Context, handle io.Reader) (string, error) {
	if err := validateHandle(handle); err != nil {
		return "", err
	}

	data, err := io.ReadAll(handle)
	if err != nil {
		return "", fmt.Errorf("reading object content: %w", err)
	}

	key := uid.NewKey()
	b.mu.Lock()
	b.objects[key] = data
	b.mu.Unlock()
	return key, nil
}

// HasObjects reports, for each key, whether an object with that key exists.
func (b *MemoryBackend) HasObjects(ctx context.Context, keys []string) ([]bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]bool, len(keys))
	for i, key := range keys {
		_, result[i] = b.objects[key]
	}
	return result, nil
}

// memoryObjectReader adapts a bytes.Reader to the ObjectReader contract.
type memoryObjectReader struct {
	*bytes.Reader
}

// Close is a no-op; there is no backing resource to release.
func (r *memoryObjectReader) Close() error {
	return nil
}

// Open returns a seekable reader over the object's content. A missing key
// yields a *NotFoundError.
func (b *MemoryBackend) Open(ctx context.Context, key string) (ObjectReader, error) {
	b.mu.RLock()
	data, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	// Copy so later deletes cannot mutate an open reader.
	buf := make([]byte, len(data))
	copy(buf, data)
	return &memoryObjectReader{Reader: bytes.NewReader(buf)}, nil
}

// IterObjectStreams invokes fn once per requested key, in order, with a
// scoped reader over that object's content.
func (b *MemoryBackend) IterObjectStreams(ctx context.Context, keys []string, fn func(key string, r io.ReadSeeker) error) error {
	return iterObjectStreams(ctx, b, keys, fn)
}

// DeleteObjects deletes the listed objects. Missing keys are not an error;
// empty input is a no-op.
func (b *MemoryBackend) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.objects, key)
	}
	return nil
}

// ListObjects returns every key currently stored, in no guaranteed order.
func (b *MemoryBackend) ListObjects(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	return keys, nil
}

// Maintain performs maintenance operations. Nothing to maintain in memory;
// returns an empty report.
func (b *MemoryBackend) Maintain(ctx context.Context, opts MaintainOptions) (MaintenanceReport, error) {
	return MaintenanceReport{}, nil
}

// GetInfo reports the current object count.
func (b *MemoryBackend) GetInfo(ctx context.Context, detailed bool) (InfoReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return InfoReport{"objects": len(b.objects)}, nil
}

// Ensure MemoryBackend implements Backend at compile time.
var _ Backend = (*MemoryBackend)(nil)
