package fortune

import "errors"

var (
	// ErrInvalidHandle is returned by Read and Close for a handle that is
	// not currently open: never issued, or already closed.
	ErrInvalidHandle = errors.New("invalid session handle")

	// ErrResourceExhausted is returned by Open when no more session
	// state can be allocated.
	ErrResourceExhausted = errors.New("session limit reached")

	// ErrEmptyCatalog is returned when a catalog would have no usable
	// entries.
	ErrEmptyCatalog = errors.New("fortune catalog is empty")
)
