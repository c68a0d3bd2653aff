package sign

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
)

// DevPhrase is the well known development mnemonic that "//Alice" style
// URIs derive from.
const DevPhrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

var uriPattern = regexp.MustCompile(`^(?P<phrase>[^/]+)?(?P<path>(//?[^/]+)*)(///(?P<password>.*))?$`)

// Junction is one step of a derivation path.
type Junction struct {
	ChainCode [32]byte
	Hard      bool
}

// NewJunction builds a junction from its textual form. Numeric junctions are
// encoded as u64, anything else as a SCALE string; codes longer than 32
// bytes are hashed with blake2-256.
func NewJunction(text string, hard bool) Junction {
	var enc []byte
	if n, err := strconv.ParseUint(text, 10, 64); err == nil {
		enc = binary.LittleEndian.AppendUint64(nil, n)
	} else {
		enc = appendScaleString(nil, text)
	}

	j := Junction{Hard: hard}
	if len(enc) > len(j.ChainCode) {
		j.ChainCode = blake2b.Sum256(enc)
	} else {
		copy(j.ChainCode[:], enc)
	}
	return j
}

func appendScaleString(dst []byte, s string) []byte {
	// The compact prefix only needs the single and two byte modes for the
	// lengths junctions and HDKD labels have.
	n := len(s)
	switch {
	case n < 1<<6:
		dst = append(dst, byte(n<<2))
	case n < 1<<14:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(n<<2)|1)
	default:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(n<<2)|2)
	}
	return append(dst, s...)
}

// URI is a parsed secret URI: phrase, hex seed or empty (dev phrase),
// followed by //hard and /soft junctions and an optional ///password.
type URI struct {
	Phrase    string
	Path      string
	Junctions []Junction
	Password  string
}

// ParseURI splits a secret URI into its parts.
func ParseURI(uri string) (URI, error) {
	m := uriPattern.FindStringSubmatch(uri)
	if m == nil {
		return URI{}, fmt.Errorf("%w: %q", ErrInvalidURI, redact(uri))
	}

	u := URI{
		Phrase:   strings.TrimSpace(m[uriPattern.SubexpIndex("phrase")]),
		Path:     m[uriPattern.SubexpIndex("path")],
		Password: m[uriPattern.SubexpIndex("password")],
	}
	if u.Phrase == "" {
		u.Phrase = DevPhrase
	}

	rest := u.Path
	for rest != "" {
		hard := strings.HasPrefix(rest, "//")
		if hard {
			rest = rest[2:]
		} else {
			rest = rest[1:]
		}
		end := strings.IndexByte(rest, '/')
		if end < 0 {
			end = len(rest)
		}
		if end == 0 {
			return URI{}, fmt.Errorf("%w: empty junction", ErrInvalidURI)
		}
		u.Junctions = append(u.Junctions, NewJunction(rest[:end], hard))
		rest = rest[end:]
	}
	return u, nil
}

// redact keeps secret phrases out of error messages.
func redact(uri string) string {
	if i := strings.IndexByte(uri, '/'); i >= 0 {
		return "***" + uri[i:]
	}
	return "***"
}

// FromURI creates a keypair from a secret URI such as "//Alice",
// "<mnemonic>//hard/soft///password" or "0x<seed>//path".
func FromURI(uri string, scheme Scheme, opts ...Option) (*Keypair, error) {
	u, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	var seed []byte
	if strings.HasPrefix(u.Phrase, "0x") {
		if seed, err = hexutil.Decode(u.Phrase); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
		}
	} else {
		if seed, err = MnemonicToSeed(u.Phrase, u.Password); err != nil {
			return nil, err
		}
	}
	defer zero(seed)

	k, err := FromSeed(seed, scheme, opts...)
	if err != nil {
		return nil, err
	}
	if len(u.Junctions) == 0 {
		return k, nil
	}

	derived, err := k.Derive(u.Junctions)
	k.Zero()
	if err != nil {
		return nil, err
	}
	derived.path = u.Path
	return derived, nil
}

// FromMnemonic creates a keypair from a bip39 phrase and optional password.
func FromMnemonic(phrase, password string, scheme Scheme, opts ...Option) (*Keypair, error) {
	seed, err := MnemonicToSeed(phrase, password)
	if err != nil {
		return nil, err
	}
	defer zero(seed)
	return FromSeed(seed, scheme, opts...)
}

// MnemonicToSeed turns a bip39 phrase into the 32-byte seed substrate keys
// are derived from: PBKDF2-SHA512 over the phrase entropy, salted with
// "mnemonic" and the password.
func MnemonicToSeed(phrase, password string) ([]byte, error) {
	entropy, err := bip39.EntropyFromMnemonic(normalizePhrase(phrase))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	defer zero(entropy)

	key := pbkdf2.Key(entropy, []byte("mnemonic"+password), 2048, 64, sha512.New)
	seed := append([]byte(nil), key[:SeedLen]...)
	zero(key)
	return seed, nil
}

func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// GenerateMnemonic returns a fresh English bip39 phrase of 12, 15, 18, 21 or
// 24 words.
func GenerateMnemonic(words int) (string, error) {
	if words < 12 || words > 24 || words%3 != 0 {
		return "", fmt.Errorf("%w: %d words", ErrInvalidMnemonic, words)
	}
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", err
	}
	defer zero(entropy)
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic reports whether phrase has valid words and checksum.
func ValidateMnemonic(phrase string) bool {
	return bip39.IsMnemonicValid(normalizePhrase(phrase))
}

// Derive applies junctions to k and returns the derived keypair. Soft
// junctions are only defined for sr25519.
func (k *Keypair) Derive(junctions []Junction) (*Keypair, error) {
	if k.zeroed {
		return nil, ErrKeyZeroed
	}

	switch k.scheme {
	case Sr25519:
		return k.deriveSr25519(junctions)
	case Ed25519, Ecdsa:
		label := "Ed25519HDKD"
		if k.scheme == Ecdsa {
			label = "Secp256k1HDKD"
		}
		seed := k.seed()
		defer zero(seed)
		for _, j := range junctions {
			if !j.Hard {
				return nil, ErrSoftDerivation
			}
			buf := appendScaleString(nil, label)
			buf = append(buf, seed...)
			buf = append(buf, j.ChainCode[:]...)
			next := blake2b.Sum256(buf)
			zero(buf)
			copy(seed, next[:])
			zero(next[:])
		}
		return FromSeed(seed, k.scheme, WithSS58Format(k.ss58))
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedScheme, k.scheme)
}

func (k *Keypair) deriveSr25519(junctions []Junction) (*Keypair, error) {
	sk := k.sr
	for _, j := range junctions {
		if j.Hard {
			msk, _, err := sk.HardDeriveMiniSecretKey([]byte{}, j.ChainCode)
			if err != nil {
				return nil, fmt.Errorf("hard derivation: %w", err)
			}
			sk = msk.ExpandEd25519()
			continue
		}
		ext, err := schnorrkel.DeriveKeySimple(sk, []byte{}, j.ChainCode)
		if err != nil {
			return nil, fmt.Errorf("soft derivation: %w", err)
		}
		if sk, err = ext.Secret(); err != nil {
			return nil, fmt.Errorf("soft derivation: %w", err)
		}
	}

	derived := &Keypair{scheme: Sr25519, ss58: k.ss58}
	if err := derived.setSr25519(sk); err != nil {
		return nil, err
	}
	return derived, nil
}

// seed returns a copy of the ed25519 or ecdsa secret seed.
func (k *Keypair) seed() []byte {
	switch k.scheme {
	case Ed25519:
		return append([]byte(nil), k.ed.Seed()...)
	case Ecdsa:
		b := make([]byte, SeedLen)
		return k.ec.D.FillBytes(b)
	}
	return nil
}
