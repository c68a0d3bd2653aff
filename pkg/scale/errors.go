package scale

import (
	"errors"
	"fmt"
)

// Codec error causes. They are wrapped by DecodeError and EncodeError and can
// be matched with errors.Is.
var (
	ErrTruncated          = errors.New("unexpected end of input")
	ErrTrailingBytes      = errors.New("trailing bytes after value")
	ErrInvalidBool        = errors.New("invalid bool byte")
	ErrInvalidOption      = errors.New("invalid option tag")
	ErrInvalidVariant     = errors.New("enum tag out of range")
	ErrInvalidUTF8        = errors.New("string is not valid utf-8")
	ErrNonCanonical       = errors.New("non-canonical compact encoding")
	ErrCompactOverflow    = errors.New("compact integer too large")
	ErrRecursionLimit     = errors.New("type nesting too deep")
	ErrShapeMismatch      = errors.New("value shape does not match type")
	ErrOutOfRange         = errors.New("integer out of range")
	ErrLengthMismatch     = errors.New("length does not match type")
	ErrMissingField       = errors.New("missing field")
	ErrUnexpectedField    = errors.New("unexpected field")
	ErrUnknownVariant     = errors.New("unknown enum variant")
	ErrAliasCycle         = errors.New("alias cycle")
	ErrInvalidTypeExpr    = errors.New("invalid type expression")
	ErrDuplicateType      = errors.New("type already defined")
	ErrRegistryPublished  = errors.New("registry already published")
	ErrUnsupportedPreset  = errors.New("unsupported preset definition")
	ErrUnknownPreset      = errors.New("unknown preset")
	ErrUnsupportedBitType = errors.New("unsupported bit sequence store type")
)

// UnknownTypeError reports a type identifier missing from a registry.
type UnknownTypeError struct {
	TypeID TypeID
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", string(e.TypeID))
}

// DecodeError reports where decoding stopped: the type being decoded and the
// byte offset into the input.
type DecodeError struct {
	TypeID TypeID
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q at offset %d: %v", string(e.TypeID), e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a value that does not fit its declared type.
type EncodeError struct {
	TypeID TypeID
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %q: %v", string(e.TypeID), e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
