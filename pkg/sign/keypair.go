package sign

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/ss58"
)

// SeedLen is the length of the secret seeds keypairs are created from.
const SeedLen = 32

// signingContext is the sr25519 transcript label substrate signs under.
var signingContext = []byte("substrate")

// Ensure our types implement the interfaces at compile time.
var _ Signer = (*Keypair)(nil)
var _ PublicKey = (*KeypairPublicKey)(nil)

// Keypair holds the key material of one account. A Keypair is immutable
// apart from Zero, which wipes the private material it owns.
type Keypair struct {
	scheme Scheme
	public []byte
	ss58   uint16
	path   string

	ed ed25519.PrivateKey
	sr *schnorrkel.SecretKey
	ec *ecdsa.PrivateKey

	zeroed bool
}

// Option adjusts keypair construction.
type Option func(*Keypair)

// WithSS58Format sets the network prefix used to render the address.
func WithSS58Format(prefix uint16) Option {
	return func(k *Keypair) { k.ss58 = prefix }
}

// FromSeed creates a keypair from a 32-byte secret seed. For sr25519 the
// seed is the mini secret key, for ecdsa the private scalar.
func FromSeed(seed []byte, scheme Scheme, opts ...Option) (*Keypair, error) {
	if len(seed) != SeedLen {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSeed, SeedLen, len(seed))
	}

	k := &Keypair{scheme: scheme, ss58: ss58.PrefixSubstrate}
	for _, opt := range opts {
		opt(k)
	}

	switch scheme {
	case Ed25519:
		k.ed = ed25519.NewKeyFromSeed(seed)
		k.public = append([]byte(nil), k.ed[ed25519.SeedSize:]...)
	case Sr25519:
		var raw [SeedLen]byte
		copy(raw[:], seed)
		msk, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
		zero(raw[:])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
		}
		if err := k.setSr25519(msk.ExpandEd25519()); err != nil {
			return nil, err
		}
	case Ecdsa:
		priv, err := ethcrypto.ToECDSA(seed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
		}
		k.ec = priv
		k.public = ethcrypto.CompressPubkey(&priv.PublicKey)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedScheme, scheme)
	}
	return k, nil
}

func (k *Keypair) setSr25519(sk *schnorrkel.SecretKey) error {
	pub, err := sk.Public()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	enc := pub.Encode()
	k.sr = sk
	k.public = enc[:]
	return nil
}

// Scheme returns the signature scheme.
func (k *Keypair) Scheme() Scheme { return k.scheme }

// DerivationPath is the junction path the keypair was derived with, empty
// for keys created directly from a seed.
func (k *Keypair) DerivationPath() string { return k.path }

// SS58Format returns the network prefix addresses are rendered with.
func (k *Keypair) SS58Format() uint16 { return k.ss58 }

// PublicKey returns the public key.
func (k *Keypair) PublicKey() PublicKey {
	return &KeypairPublicKey{scheme: k.scheme, key: k.public, prefix: k.ss58}
}

// AccountID returns the on-chain account id of the keypair.
func (k *Keypair) AccountID() AccountID {
	return accountID(k.scheme, k.public)
}

// SS58Address renders the account id with the keypair's network prefix.
func (k *Keypair) SS58Address() string {
	return k.AccountID().SS58(k.ss58)
}

// Sign signs data. ed25519 and ecdsa signatures are deterministic, sr25519
// signatures are randomized. ecdsa signs the blake2-256 hash of data.
func (k *Keypair) Sign(data []byte) (Signature, error) {
	if k.zeroed {
		return nil, ErrKeyZeroed
	}

	switch k.scheme {
	case Ed25519:
		return Signature(ed25519.Sign(k.ed, data)), nil
	case Sr25519:
		sig, err := k.sr.Sign(schnorrkel.NewSigningContext(signingContext, data))
		if err != nil {
			return nil, err
		}
		enc := sig.Encode()
		return Signature(enc[:]), nil
	case Ecdsa:
		hash := blake2b.Sum256(data)
		sig, err := ethcrypto.Sign(hash[:], k.ec)
		if err != nil {
			return nil, err
		}
		return Signature(sig), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedScheme, k.scheme)
}

// SignMulti signs data and tags the signature with the scheme.
func (k *Keypair) SignMulti(data []byte) (MultiSignature, error) {
	sig, err := k.Sign(data)
	if err != nil {
		return MultiSignature{}, err
	}
	return MultiSignature{Scheme: k.scheme, Signature: sig}, nil
}

// Verify checks a signature made by this keypair.
func (k *Keypair) Verify(data []byte, sig Signature) bool {
	return Verify(k.scheme, k.public, data, sig)
}

// Zero wipes the private material owned by the keypair. Signing fails
// afterwards. The sr25519 secret lives inside the schnorrkel key and is
// released rather than overwritten.
func (k *Keypair) Zero() {
	zero(k.ed)
	k.ed = nil
	k.sr = nil
	if k.ec != nil {
		k.ec.D.SetInt64(0)
		k.ec = nil
	}
	k.zeroed = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Verify checks sig over data against a public key of the given scheme.
func Verify(scheme Scheme, public []byte, data []byte, sig Signature) bool {
	switch scheme {
	case Ed25519:
		return len(public) == ed25519.PublicKeySize && len(sig) == ed25519.SignatureSize &&
			ed25519.Verify(ed25519.PublicKey(public), data, sig)
	case Sr25519:
		if len(public) != 32 || len(sig) != 64 {
			return false
		}
		var pkRaw [32]byte
		copy(pkRaw[:], public)
		pk := &schnorrkel.PublicKey{}
		if err := pk.Decode(pkRaw); err != nil {
			return false
		}
		var sigRaw [64]byte
		copy(sigRaw[:], sig)
		s := &schnorrkel.Signature{}
		if err := s.Decode(sigRaw); err != nil {
			return false
		}
		ok, err := pk.Verify(s, schnorrkel.NewSigningContext(signingContext, data))
		return err == nil && ok
	case Ecdsa:
		if len(sig) != 65 {
			return false
		}
		hash := blake2b.Sum256(data)
		return ethcrypto.VerifySignature(public, hash[:], sig[:64])
	}
	return false
}

// KeypairPublicKey is the public key of a Keypair.
type KeypairPublicKey struct {
	scheme Scheme
	key    []byte
	prefix uint16
}

// NewPublicKey wraps raw public key bytes.
func NewPublicKey(scheme Scheme, key []byte, prefix uint16) (*KeypairPublicKey, error) {
	want := 32
	if scheme == Ecdsa {
		want = 33
	}
	if len(key) != want {
		return nil, fmt.Errorf("%w: %s key of %d bytes", ErrInvalidPublicKey, scheme, len(key))
	}
	return &KeypairPublicKey{scheme: scheme, key: append([]byte(nil), key...), prefix: prefix}, nil
}

func (p *KeypairPublicKey) Scheme() Scheme       { return p.scheme }
func (p *KeypairPublicKey) Bytes() []byte        { return append([]byte(nil), p.key...) }
func (p *KeypairPublicKey) AccountID() AccountID { return accountID(p.scheme, p.key) }
func (p *KeypairPublicKey) Address() Address     { return SS58Address{ID: p.AccountID(), Prefix: p.prefix} }
func (p *KeypairPublicKey) Verify(data []byte, sig Signature) bool {
	return Verify(p.scheme, p.key, data, sig)
}

// accountID maps a public key to its account id. ecdsa keys are 33 bytes
// and hashed down to 32.
func accountID(scheme Scheme, public []byte) AccountID {
	var id AccountID
	if scheme == Ecdsa {
		id = blake2b.Sum256(public)
		return id
	}
	copy(id[:], public)
	return id
}
