package sign

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/ss58"
)

func TestFromURI_DevAccounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		uri     string
		scheme  Scheme
		public  string
		account string
		address string
	}{
		{
			name:    "alice sr25519",
			uri:     "//Alice",
			scheme:  Sr25519,
			public:  "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
			address: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		},
		{
			name:    "alice stash sr25519",
			uri:     "//Alice//stash",
			scheme:  Sr25519,
			public:  "0xbe5ddb1579b72e84524fc29e78609e3caf42e85aa118ebfe0b0ad404b5bdd25f",
			address: "5GNJqTPyNqANBkUVMN1LPPrxXnFouWXoe2wNSmmEoLctxiZY",
		},
		{
			name:    "alice ed25519",
			uri:     "//Alice",
			scheme:  Ed25519,
			public:  "0x88dc3417d5058ec4b4503e0c12ea1a0a89be200fe98922423d4334014fa6b0ee",
			address: "5FA9nQDVg267DEd8m1ZypXLBnvN7SFxYwV7ndqSYGiN9TTpu",
		},
		{
			name:    "alice ecdsa",
			uri:     "//Alice",
			scheme:  Ecdsa,
			public:  "0x020a1091341fe5664bfa1782d5e04779689068c916b04cb365ec3153755684d9a1",
			account: "0x01e552298e47454041ea31273b4b630c64c104e4514aa3643490b8aaca9cf8ed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kp, err := FromURI(tt.uri, tt.scheme)
			require.NoError(t, err)
			assert.Equal(t, tt.public, hexutil.Encode(kp.PublicKey().Bytes()))
			assert.Equal(t, tt.scheme, kp.Scheme())

			account := tt.account
			if account == "" {
				account = tt.public
			}
			assert.Equal(t, account, kp.AccountID().Hex())
			if tt.address != "" {
				assert.Equal(t, tt.address, kp.SS58Address())
				assert.Equal(t, tt.address, kp.PublicKey().Address().String())
			}
		})
	}
}

func TestFromURI_Forms(t *testing.T) {
	t.Parallel()

	alice, err := FromURI("//Alice", Sr25519)
	require.NoError(t, err)
	assert.Equal(t, "//Alice", alice.DerivationPath())

	explicit, err := FromURI(DevPhrase+"//Alice", Sr25519)
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey().Bytes(), explicit.PublicKey().Bytes())

	withPassword, err := FromURI("//Alice///secret", Sr25519)
	require.NoError(t, err)
	assert.NotEqual(t, alice.PublicKey().Bytes(), withPassword.PublicKey().Bytes())

	soft, err := FromURI("//Alice/0", Sr25519)
	require.NoError(t, err)
	assert.NotEqual(t, alice.PublicKey().Bytes(), soft.PublicKey().Bytes())

	seed := "0x9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	fromHex, err := FromURI(seed, Ed25519)
	require.NoError(t, err)
	assert.Equal(t, "0xd75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a", hexutil.Encode(fromHex.PublicKey().Bytes()))

	kusama, err := FromURI("//Alice", Sr25519, WithSS58Format(ss58.PrefixKusama))
	require.NoError(t, err)
	assert.Equal(t, "HNZata7iMYWmk5RvZRTiAsSDhV8366zq2YGb3tLH5Upf74F", kusama.SS58Address())
	assert.True(t, kusama.PublicKey().Address().Equals(alice.PublicKey().Address()))
}

func TestFromURI_Errors(t *testing.T) {
	t.Parallel()

	_, err := FromURI("//Alice/soft", Ed25519)
	assert.ErrorIs(t, err, ErrSoftDerivation)

	_, err = FromURI("//Alice/soft", Ecdsa)
	assert.ErrorIs(t, err, ErrSoftDerivation)

	_, err = FromURI("not a valid phrase at all//Alice", Sr25519)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
	assert.NotContains(t, err.Error(), "valid phrase")

	_, err = FromURI("0x1234", Sr25519)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = FromURI("0xzz", Sr25519)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = FromSeed(make([]byte, 32), Scheme(9))
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestKeypair_SignVerify(t *testing.T) {
	t.Parallel()

	msg := []byte("bittensor payload")
	for _, scheme := range []Scheme{Ed25519, Sr25519, Ecdsa} {
		t.Run(scheme.String(), func(t *testing.T) {
			t.Parallel()

			kp, err := FromURI("//Bob", scheme)
			require.NoError(t, err)

			sig, err := kp.Sign(msg)
			require.NoError(t, err)
			assert.Len(t, sig, scheme.SignatureLen())
			assert.True(t, kp.Verify(msg, sig))
			assert.True(t, Verify(scheme, kp.PublicKey().Bytes(), msg, sig))

			assert.False(t, kp.Verify([]byte("other payload"), sig))
			tampered := append(Signature(nil), sig...)
			tampered[10] ^= 0x01
			assert.False(t, kp.Verify(msg, tampered))

			// A signature never verifies under another scheme.
			for _, other := range []Scheme{Ed25519, Sr25519, Ecdsa} {
				if other != scheme {
					assert.False(t, Verify(other, kp.PublicKey().Bytes(), msg, sig))
				}
			}

			multi, err := kp.SignMulti(msg)
			require.NoError(t, err)
			enc := multi.Encode()
			assert.Equal(t, byte(scheme), enc[0])

			decoded, n, err := DecodeMultiSignature(enc)
			require.NoError(t, err)
			assert.Equal(t, len(enc), n)
			assert.Equal(t, scheme, decoded.Scheme)
		})
	}
}

func TestKeypair_Deterministic(t *testing.T) {
	t.Parallel()

	msg := []byte("payload")
	for _, scheme := range []Scheme{Ed25519, Ecdsa} {
		kp, err := FromURI("//Charlie", scheme)
		require.NoError(t, err)
		a, err := kp.Sign(msg)
		require.NoError(t, err)
		b, err := kp.Sign(msg)
		require.NoError(t, err)
		assert.Equal(t, a, b, scheme.String())
	}
}

func TestKeypair_Zero(t *testing.T) {
	t.Parallel()

	for _, scheme := range []Scheme{Ed25519, Sr25519, Ecdsa} {
		kp, err := FromURI("//Dave", scheme)
		require.NoError(t, err)
		pub := kp.PublicKey().Bytes()

		kp.Zero()
		_, err = kp.Sign([]byte("x"))
		assert.ErrorIs(t, err, ErrKeyZeroed)
		_, err = kp.Derive([]Junction{NewJunction("x", true)})
		assert.ErrorIs(t, err, ErrKeyZeroed)
		assert.Equal(t, pub, kp.PublicKey().Bytes(), "public key survives zeroing")
	}
}

func TestMnemonic(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidateMnemonic(DevPhrase))
	assert.True(t, ValidateMnemonic("  Bottom drive obey lake curtain smoke basket hold race lonely fit walk "))
	assert.False(t, ValidateMnemonic("bottom drive obey lake curtain smoke basket hold race lonely fit walks"))
	assert.False(t, ValidateMnemonic("bottom drive obey lake curtain smoke basket hold race lonely fit"))

	phrase, err := GenerateMnemonic(12)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(phrase), 12)
	assert.True(t, ValidateMnemonic(phrase))

	phrase, err = GenerateMnemonic(24)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(phrase), 24)

	_, err = GenerateMnemonic(13)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	a, err := FromMnemonic(phrase, "", Sr25519)
	require.NoError(t, err)
	b, err := FromMnemonic(phrase, "pw", Sr25519)
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey().Bytes(), b.PublicKey().Bytes())
}

func TestJunction(t *testing.T) {
	t.Parallel()

	numeric := NewJunction("1", true)
	assert.Equal(t, byte(1), numeric.ChainCode[0])
	assert.Equal(t, make([]byte, 31), numeric.ChainCode[1:])

	named := NewJunction("Alice", false)
	assert.Equal(t, []byte{5 << 2, 'A', 'l', 'i', 'c', 'e'}, named.ChainCode[:6])
	assert.False(t, named.Hard)

	long := NewJunction(strings.Repeat("x", 40), true)
	assert.Equal(t, blake2b.Sum256(append([]byte{40 << 2}, strings.Repeat("x", 40)...)), long.ChainCode)

	u, err := ParseURI("//hard/soft///pw")
	require.NoError(t, err)
	assert.Equal(t, DevPhrase, u.Phrase)
	assert.Equal(t, "pw", u.Password)
	require.Len(t, u.Junctions, 2)
	assert.True(t, u.Junctions[0].Hard)
	assert.False(t, u.Junctions[1].Hard)
}

func TestSignature_JSON(t *testing.T) {
	t.Parallel()

	sig := Signature{0x01, 0x02, 0x03}
	jsonData, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.Equal(t, `"0x010203"`, string(jsonData))

	var unmarshaled Signature
	require.NoError(t, json.Unmarshal(jsonData, &unmarshaled))
	assert.Equal(t, sig, unmarshaled)

	for _, bad := range []string{`{invalid}`, `"0xinvalidhex"`, `123`} {
		var s Signature
		assert.Error(t, json.Unmarshal([]byte(bad), &s), bad)
	}
}

func TestScheme(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"ed25519", "SR25519", "ecdsa", "secp256k1"} {
		_, err := ParseScheme(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseScheme("rsa")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.Equal(t, "unknown", Scheme(9).String())

	_, _, err = DecodeMultiSignature([]byte{3})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	_, _, err = DecodeMultiSignature([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestMockSigner(t *testing.T) {
	t.Parallel()

	signer := NewMockSigner("test-id")
	a, err := signer.Sign([]byte("test data"))
	require.NoError(t, err)
	b, err := signer.Sign([]byte("test data"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other, err := NewMockSigner("other").Sign([]byte("test data"))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	pk := signer.PublicKey()
	assert.Equal(t, Sr25519, pk.Scheme())
	assert.Len(t, pk.Bytes(), 32)
	assert.True(t, pk.Address().Equals(NewMockPublicKey("test-id").Address()))
}
