package types

import "errors"

// Domain errors shared across packages
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidEvent      = errors.New("invalid event")
	ErrInvalidEventID    = errors.New("invalid event ID")
	ErrInvalidScore      = errors.New("score must be between 0 and 1")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrConfiguration     = errors.New("configuration error")

	// ErrRetryable marks failures the caller may retry, such as a timeout
	// on an embedding or language-model call.
	ErrRetryable = errors.New("temporarily unavailable")
)
