package sign

import (
	"golang.org/x/crypto/blake2b"
)

var _ Signer = (*MockSigner)(nil)

// MockSigner is a mock implementation of the Signer interface for testing purposes.
// Its signatures are the blake2b-512 hash of the signer id and the data, so
// they are predictable but verify under no real scheme.
type MockSigner struct {
	publicKey *MockPublicKey
}

// NewMockSigner creates a new MockSigner with the given ID.
// The ID is used to create the underlying mock public key.
func NewMockSigner(id string) *MockSigner {
	return &MockSigner{publicKey: NewMockPublicKey(id)}
}

// Sign generates a deterministic 64-byte signature.
func (m *MockSigner) Sign(data []byte) (Signature, error) {
	h, _ := blake2b.New512(nil)
	h.Write([]byte(m.publicKey.id))
	h.Write(data)
	return Signature(h.Sum(nil)), nil
}

// PublicKey returns the mock public key associated with this signer.
func (m *MockSigner) PublicKey() PublicKey {
	return m.publicKey
}

var _ PublicKey = (*MockPublicKey)(nil)

// MockPublicKey is a mock sr25519 public key whose bytes are the blake2-256
// hash of an ID string.
type MockPublicKey struct {
	id  string
	key AccountID
}

// NewMockPublicKey creates a new MockPublicKey with the given ID.
func NewMockPublicKey(id string) *MockPublicKey {
	return &MockPublicKey{id: id, key: blake2b.Sum256([]byte(id))}
}

func (m *MockPublicKey) Scheme() Scheme       { return Sr25519 }
func (m *MockPublicKey) Bytes() []byte        { return m.key[:] }
func (m *MockPublicKey) AccountID() AccountID { return m.key }

// Address returns the generic substrate address of the mock key.
func (m *MockPublicKey) Address() Address {
	return SS58Address{ID: m.key, Prefix: 42}
}
