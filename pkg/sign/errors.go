package sign

import "errors"

var (
	ErrInvalidSeed       = errors.New("invalid seed")
	ErrInvalidMnemonic   = errors.New("invalid mnemonic")
	ErrInvalidURI        = errors.New("invalid secret uri")
	ErrSoftDerivation    = errors.New("soft derivation is only supported for sr25519")
	ErrUnsupportedScheme = errors.New("unsupported signature scheme")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrKeyZeroed         = errors.New("keypair private material was zeroed")
)
