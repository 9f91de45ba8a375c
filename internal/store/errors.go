package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrSequenceCorrupt is returned when the report_seq setting does not hold a
// non-negative integer. It always reaches callers wrapped in a StorageError.
var ErrSequenceCorrupt = errors.New("report sequence counter corrupt")

// StorageError reports a failed persistence operation.
//
// A StorageError means the whole logical operation was rolled back; no part
// of it is observable.
type StorageError struct {
	// Op names the store operation, e.g. "apply step change".
	Op string

	// Err is the underlying driver or validation error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err (or anything it wraps) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageError returns true if err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ErrOverrideRequired is returned when a critical step would move to failed
// without a master override and its AUDIT log entry in the same change.
var ErrOverrideRequired = errors.New("critical step failure requires master override")
