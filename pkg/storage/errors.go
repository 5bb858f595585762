package storage

import "errors"

// Sentinel errors for ledger operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("usage record not found")

	// ErrConflict is returned when a record with the given ID already exists.
	ErrConflict = errors.New("usage record already exists")
)
