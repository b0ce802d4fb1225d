package persist

import (
	"errors"
	"fmt"
)

// Sentinel outcomes for store operations. Call sites match with errors.Is
// and fall back instead of failing the whole workflow.
var (
	// ErrNotFound: no snapshot exists for the id. Expected for unknown ids.
	ErrNotFound = errors.New("interaction state not found")
	// ErrCorrupt: a snapshot file exists but does not decode.
	ErrCorrupt = errors.New("interaction state corrupt")
	// ErrMissing: a referenced artifact file is absent; callers substitute
	// a placeholder rather than erroring the load.
	ErrMissing = errors.New("artifact missing")
)

// StorageError wraps an I/O failure at the store boundary.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
