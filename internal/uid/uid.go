// Package uid provides object key generation for flowstore.
package uid

import "github.com/google/uuid"

// NewKey generates a new object key as a canonical UUID-v4 string.
// Keys are generated exclusively at write time; callers never supply them.
func NewKey() string {
	return uuid.NewString()
}
