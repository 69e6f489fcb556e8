// Package storage persists the metadata record cache and the tombstone set.
package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrCorrupt indicates the on-disk document could not be decoded.
	ErrCorrupt = errors.New("storage: data corruption detected")
	// ErrDuplicateID indicates two records share the same external id.
	ErrDuplicateID = errors.New("storage: duplicate record id")
	// ErrLockTimeout indicates a timeout acquiring the store file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StoreError wraps storage errors with operation and document context.
// Use errors.As() to extract it, or errors.Is() against the sentinels above.
type StoreError struct {
	// Op is the operation that failed ("read", "write", "lock").
	Op string
	// Doc is the document involved ("records", "tombstones").
	Doc string
	// Err is the underlying error.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Doc, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
