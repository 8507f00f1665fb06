// Package sentinel holds the storage-level errors stores return (optionally
// wrapped). Services translate them into domain errors; validation failures
// use pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound means no row or record matched.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness or foreign-key constraint rejected the write.
	ErrConflict = errors.New("conflict")
)
