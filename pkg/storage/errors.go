package storage

import "errors"

var (
	ErrUnknownHasher = errors.New("unknown storage hasher")
	ErrArgCount      = errors.New("wrong number of storage key arguments")
	ErrKeyMismatch   = errors.New("storage key does not belong to item")
	ErrOpaqueKey     = errors.New("storage key argument is hashed and cannot be recovered")
)
