package sign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/ss58"
)

// Signer produces signatures over extrinsic payloads.
type Signer interface {
	PublicKey() PublicKey                // Public key associated with this signer.
	Sign(data []byte) (Signature, error) // Sign generates a signature for the given data.
}

// PublicKey is the public half of a keypair.
type PublicKey interface {
	Scheme() Scheme
	Bytes() []byte
	// AccountID is the 32-byte id the chain indexes accounts by.
	AccountID() AccountID
	Address() Address
}

// Address is an account address rendered for one network.
type Address interface {
	fmt.Stringer // All addresses must have a string representation.

	// Equals returns true if this address equals the other address.
	Equals(other Address) bool
}

// Scheme is the signature algorithm of a keypair. The values match the
// MultiSignature variant indices.
type Scheme uint8

const (
	Ed25519 Scheme = iota
	Sr25519
	Ecdsa
)

// String returns the string representation of the scheme.
func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "ed25519"
	case Sr25519:
		return "sr25519"
	case Ecdsa:
		return "ecdsa"
	default:
		return "unknown"
	}
}

// ParseScheme accepts the scheme names in any letter case.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "ed25519":
		return Ed25519, nil
	case "sr25519":
		return Sr25519, nil
	case "ecdsa", "secp256k1":
		return Ecdsa, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, name)
}

// SignatureLen is the length of signatures made under the scheme.
func (s Scheme) SignatureLen() int {
	if s == Ecdsa {
		return 65
	}
	return 64
}

// Signature is a raw signature without scheme tag.
type Signature []byte

// MarshalJSON implements the json.Marshaler interface, encoding the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// String implements the fmt.Stringer interface
func (s Signature) String() string {
	return hexutil.Encode(s)
}

// MultiSignature is a signature tagged with its scheme, the form extrinsics
// carry.
type MultiSignature struct {
	Scheme    Scheme
	Signature Signature
}

// Encode returns the SCALE encoding: the scheme index followed by the
// signature bytes.
func (m MultiSignature) Encode() []byte {
	out := make([]byte, 0, 1+len(m.Signature))
	out = append(out, byte(m.Scheme))
	return append(out, m.Signature...)
}

// DecodeMultiSignature parses a SCALE encoded MultiSignature and returns the
// number of bytes consumed.
func DecodeMultiSignature(data []byte) (MultiSignature, int, error) {
	if len(data) == 0 {
		return MultiSignature{}, 0, fmt.Errorf("%w: empty multi signature", ErrInvalidSignature)
	}
	scheme := Scheme(data[0])
	if scheme > Ecdsa {
		return MultiSignature{}, 0, fmt.Errorf("%w: scheme %d", ErrUnsupportedScheme, data[0])
	}
	n := scheme.SignatureLen()
	if len(data) < 1+n {
		return MultiSignature{}, 0, fmt.Errorf("%w: %s signature truncated", ErrInvalidSignature, scheme)
	}
	sig := append(Signature(nil), data[1:1+n]...)
	return MultiSignature{Scheme: scheme, Signature: sig}, 1 + n, nil
}

// AccountID is the 32-byte account identifier.
type AccountID [32]byte

// NewAccountID copies b into an AccountID.
func NewAccountID(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != len(id) {
		return id, fmt.Errorf("%w: account id length %d", ss58.ErrInvalidAddress, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// AccountIDFromSS58 decodes an ss58 address of a 32-byte account.
func AccountIDFromSS58(address string) (AccountID, uint16, error) {
	key, prefix, err := ss58.Decode(address)
	if err != nil {
		return AccountID{}, 0, err
	}
	id, err := NewAccountID(key)
	return id, prefix, err
}

func (a AccountID) Bytes() []byte { return a[:] }
func (a AccountID) Hex() string   { return hexutil.Encode(a[:]) }

// SS58 renders the id under the network prefix.
func (a AccountID) SS58(prefix uint16) string {
	addr, err := ss58.Encode(a[:], prefix)
	if err != nil {
		// Only an invalid prefix fails for a 32-byte key.
		return a.Hex()
	}
	return addr
}

var _ Address = SS58Address{}

// SS58Address is an account id bound to a network prefix.
type SS58Address struct {
	ID     AccountID
	Prefix uint16
}

// ParseAddress decodes an ss58 address.
func ParseAddress(address string) (SS58Address, error) {
	id, prefix, err := AccountIDFromSS58(address)
	if err != nil {
		return SS58Address{}, err
	}
	return SS58Address{ID: id, Prefix: prefix}, nil
}

func (a SS58Address) String() string { return a.ID.SS58(a.Prefix) }

// Equals compares account ids; the network prefix does not take part.
func (a SS58Address) Equals(other Address) bool {
	if o, ok := other.(SS58Address); ok {
		return bytes.Equal(a.ID[:], o.ID[:])
	}
	o, err := ParseAddress(other.String())
	return err == nil && a.ID == o.ID
}
