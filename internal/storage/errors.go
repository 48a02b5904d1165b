package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a user or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a flow ID is appended twice.
	// Flow history and flow events are append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for empty user IDs, unexecuted flows and similar.
	ErrInvalidInput = errors.New("invalid input")
)
