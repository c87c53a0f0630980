package repository

import (
	"errors"
	"fmt"
)

// ErrInvalidHandle is returned by PutObjectFromFilelike when the supplied
// handle is not a usable byte stream. It is raised before any network call.
var ErrInvalidHandle = errors.New("handle is not a byte-oriented readable stream")

// NotFoundError is returned by Open when no object exists under the
// requested key. It is distinct from infrastructure failures (auth, network,
// throttling), which propagate unconverted: callers rely on that distinction
// to decide between retry and hard failure.
type NotFoundError struct {
	// Key is the requested object key.
	Key string
	// Err is the underlying store error, if any.
	Err error
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object with key %q does not exist", e.Key)
}

// Unwrap returns the underlying store error.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a missing-object error.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
