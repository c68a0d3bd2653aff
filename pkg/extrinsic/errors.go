package extrinsic

import "errors"

var (
	// ErrInvalidCall is returned when call arguments do not match the
	// argument types the runtime declares.
	ErrInvalidCall = errors.New("invalid call")
	// ErrUnsupportedExtension is returned for a signed extension that
	// carries data this package does not know how to fill in.
	ErrUnsupportedExtension = errors.New("unsupported signed extension")
	ErrInvalidEra           = errors.New("invalid era")
	ErrInvalidExtrinsic     = errors.New("invalid extrinsic")
	ErrMissingSigner        = errors.New("extrinsic signer is required")
)
