package metadata

import "errors"

var (
	// ErrMetadataDecode means the node's metadata could not be understood.
	// Nothing downstream works without it, so sessions treat it as fatal.
	ErrMetadataDecode   = errors.New("metadata decode failed")
	ErrModuleNotFound   = errors.New("module not found")
	ErrStorageNotFound  = errors.New("storage function not found")
	ErrCallNotFound     = errors.New("call function not found")
	ErrConstantNotFound = errors.New("constant not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrErrorNotFound    = errors.New("module error not found")
	ErrAPINotFound      = errors.New("runtime api not found")
)
