package substrate

import "errors"

var (
	// ErrBlockNotFound is returned when the node knows no block at the
	// requested number or hash.
	ErrBlockNotFound = errors.New("block not found")
	// ErrNotAMap is returned by QueryMap for plain storage entries.
	ErrNotAMap = errors.New("storage entry is not a map")
	// ErrInvalidArgument is returned when a Go argument cannot be converted
	// to the type a storage key or call expects.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrExtrinsicFailed is returned when a watched extrinsic is dropped,
	// invalid or usurped before reaching the requested status.
	ErrExtrinsicFailed = errors.New("extrinsic not included")
)
