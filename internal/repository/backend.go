// Package repository defines the contract and implementations for flowstore's
// object repository backends.
//
// A backend binds one bucket or container ("location") plus one set of
// credentials to a small, uniform operation set: put, open, existence checks,
// listing, batched deletion, and location lifecycle (initialise/erase).
// Object content is identified by opaque UUID-v4 keys generated at write
// time; the backend itself keeps no metadata about stored objects.
package repository

import (
	"context"
	"errors"
	"io"
	"os"
)

// KeyFormatUUID4 is the key format reported by every backend in this package:
// keys are random UUID-v4 strings, not content digests.
const KeyFormatUUID4 = "uuid4"

// ObjectReader provides read access to one stored object's full content.
// The content is buffered locally, so the reader supports seeking back to
// the start for repeated reads. Close releases the local buffer and must be
// called on every path.
type ObjectReader = io.ReadSeekCloser

// InitialiseOptions carries provider-specific settings that are passed
// through to the underlying location-create call.
type InitialiseOptions struct {
	// LocationConstraint pins the region a new S3 bucket is created in.
	// AWS requires it for every region except us-east-1.
	LocationConstraint string
	// Metadata is attached to a newly created Azure container.
	Metadata map[string]string
}

// InitialiseOption mutates InitialiseOptions.
type InitialiseOption func(*InitialiseOptions)

// WithLocationConstraint pins the region a new S3 bucket is created in.
func WithLocationConstraint(region string) InitialiseOption {
	return func(o *InitialiseOptions) {
		o.LocationConstraint = region
	}
}

// WithMetadata attaches metadata to a newly created Azure container.
func WithMetadata(metadata map[string]string) InitialiseOption {
	return func(o *InitialiseOptions) {
		o.Metadata = metadata
	}
}

// MaintainOptions selects which maintenance operations to perform.
type MaintainOptions struct {
	// DryRun reports what would be done without doing it.
	DryRun bool
	// Live restricts maintenance to operations that are safe while the
	// repository is in use.
	Live bool
}

// MaintenanceReport describes the maintenance operations performed.
type MaintenanceReport map[string]any

// InfoReport describes the configuration and content of a repository.
type InfoReport map[string]any

// Backend is the contract every object repository backend implements.
//
// A backend instance is bound to exactly one location and one set of
// credentials, fixed at construction. It has two lifecycle states:
// uninitialised (the location does not exist in the remote store) and
// initialised (it does). All operations other than IsInitialised,
// Initialise and Erase assume the initialised state; their behavior on an
// uninitialised location is store-dependent.
//
// Backends hold no mutable in-process state beyond the client handle and
// location name, so concurrent use for independent keys is safe to the
// extent the underlying client is.
type Backend interface {
	// UUID returns the location name (bucket or container) as the backend's
	// stable identifier.
	UUID() string

	// KeyFormat returns KeyFormatUUID4, signalling that keys are opaque
	// random identifiers.
	KeyFormat() string

	// IsInitialised reports whether the location exists. Absence is a normal
	// false result, not an error; other failure classes (auth, network)
	// propagate.
	IsInitialised(ctx context.Context) (bool, error)

	// Initialise creates the location if it does not exist. Calling it on an
	// already-initialised backend is a no-op. Options are passed through to
	// the underlying create call.
	Initialise(ctx context.Context, opts ...InitialiseOption) error

	// Erase deletes the location and its entire contents. No-op on an
	// already-uninitialised location.
	Erase(ctx context.Context) error

	// PutObjectFromFilelike uploads the full content of the byte stream
	// under a freshly generated UUID-v4 key and returns the key. The handle
	// is validated before any network call; an invalid handle yields
	// ErrInvalidHandle.
	PutObjectFromFilelike(ctx context.Context, handle io.Reader) (string, error)

	// HasObjects reports, for each key, whether an object with that key
	// currently exists. The result has the same order and length as keys,
	// and is correct past the store's single-page listing limit.
	HasObjects(ctx context.Context, keys []string) ([]bool, error)

	// Open returns a reader over the object's full content. The reader is
	// seekable and must be closed by the caller. A missing key yields a
	// *NotFoundError.
	Open(ctx context.Context, key string) (ObjectReader, error)

	// IterObjectStreams invokes fn once per requested key, in the caller's
	// order, with a seekable reader over that object's content. Each reader
	// is only valid for the duration of its fn invocation; its backing
	// buffer is released before the next key is opened, and on every exit
	// path including an error returned by fn.
	IterObjectStreams(ctx context.Context, keys []string, fn func(key string, r io.ReadSeeker) error) error

	// DeleteObjects deletes all listed objects in one or more batched calls.
	// An empty input is a safe no-op with no network call. Deleting keys
	// that do not exist never yields a *NotFoundError.
	DeleteObjects(ctx context.Context, keys []string) error

	// ListObjects returns every key currently stored, in no guaranteed
	// order. Listing paginates transparently, so the result is complete
	// regardless of total object count. An empty location yields an empty
	// slice, not an error.
	ListObjects(ctx context.Context) ([]string, error)

	// Maintain performs store-level housekeeping and reports what was done.
	// The cloud backends in this package currently perform no work.
	Maintain(ctx context.Context, opts MaintainOptions) (MaintenanceReport, error)

	// GetInfo reports on the configuration and content of the repository.
	// The cloud backends in this package currently return an empty report.
	GetInfo(ctx context.Context, detailed bool) (InfoReport, error)
}

// deleteBatchSize is the maximum number of keys per batched delete call,
// matching the S3 DeleteObjects request limit.
const deleteBatchSize = 1000

// validateHandle checks that handle is a usable byte stream. It runs before
// any network interaction so input-contract violations surface immediately.
func validateHandle(handle io.Reader) error {
	if handle == nil {
		return ErrInvalidHandle
	}
	// A handle on a directory reads nothing useful; reject it up front.
	if s, ok := handle.(interface{ Stat() (os.FileInfo, error) }); ok {
		if fi, err := s.Stat(); err == nil && fi.IsDir() {
			return ErrInvalidHandle
		}
	}
	return nil
}

// batchKeys splits keys into batches of at most size elements.
func batchKeys(keys []string, size int) [][]string {
	var batches [][]string
	for len(keys) > size {
		batches = append(batches, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		batches = append(batches, keys)
	}
	return batches
}

// membership reports, for each key in order, whether it is present in the
// existing set. Shared by backends that answer HasObjects against a full
// listing.
func membership(keys, existing []string) []bool {
	set := make(map[string]struct{}, len(existing))
	for _, key := range existing {
		set[key] = struct{}{}
	}
	result := make([]bool, len(keys))
	for i, key := range keys {
		_, result[i] = set[key]
	}
	return result
}

// iterObjectStreams is the shared composition of repeated Open calls backing
// every backend's IterObjectStreams: one scoped reader per key, caller order
// preserved, each buffer released before the next open and on error paths.
func iterObjectStreams(ctx context.Context, b Backend, keys []string, fn func(key string, r io.ReadSeeker) error) error {
	for _, key := range keys {
		reader, err := b.Open(ctx, key)
		if err != nil {
			return err
		}
		err = fn(key, reader)
		if closeErr := reader.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// tempObjectReader buffers remote object content in a local temporary file
// so callers get a seekable handle. Close removes the file.
type tempObjectReader struct {
	file *os.File
}

// newTempObjectReader creates a temporary file, lets fill write the object
// content into it, and returns a reader positioned at the start. The file is
// removed if fill fails.
func newTempObjectReader(fill func(w io.Writer) error) (ObjectReader, error) {
	file, err := os.CreateTemp("", "flowstore-object-*")
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		file.Close()
		os.Remove(file.Name())
	}
	if err := fill(file); err != nil {
		cleanup()
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, err
	}
	return &tempObjectReader{file: file}, nil
}

func (r *tempObjectReader) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

func (r *tempObjectReader) Seek(offset int64, whence int) (int64, error) {
	return r.file.Seek(offset, whence)
}

// Close closes and removes the backing temporary file.
func (r *tempObjectReader) Close() error {
	err := r.file.Close()
	if removeErr := os.Remove(r.file.Name()); err == nil {
		err = removeErr
	}
	return err
}

// isContextError keeps context cancellation and deadline errors out of
// not-found classification: a cancelled download is not a missing object.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
