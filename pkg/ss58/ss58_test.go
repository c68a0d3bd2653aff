package ss58

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = hexutil.MustDecode("0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")

func TestEncode_Vectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix  uint16
		address string
	}{
		{PrefixPolkadot, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"},
		{PrefixKusama, "HNZata7iMYWmk5RvZRTiAsSDhV8366zq2YGb3tLH5Upf74F"},
		{PrefixBittensor, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},
		{255, "yGHXkYLYqxijLKKfd9Q2CB9shRVu8rPNBS53wvwGTutYg4zTg"},
		{MaxPrefix, "yNa8JpqfFB3q8A29rCwSgxvdU94ufJw2yKKxDgznS5m1PoFvn"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()

			got, err := Encode(alice, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.address, got)

			key, prefix, err := Decode(tt.address)
			require.NoError(t, err)
			assert.Equal(t, alice, key)
			assert.Equal(t, tt.prefix, prefix)
			assert.True(t, IsValid(tt.address, tt.prefix))
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	t.Parallel()

	for _, prefix := range []uint16{46, 47, MaxPrefix + 1} {
		_, err := Encode(alice, prefix)
		assert.ErrorIs(t, err, ErrInvalidAddress, prefix)
	}
	_, err := Encode(alice[:31], 42)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
	}{
		{"empty", ""},
		{"not base58", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKut0l"},
		{"too short", base58.Encode([]byte{42})},
		{"bad length", base58.Encode(append([]byte{42}, make([]byte, 20)...))},
		{"reserved prefix byte", base58.Encode(append([]byte{0x80}, make([]byte, 34)...))},
		{"checksum", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Decode(tt.address)
			assert.ErrorIs(t, err, ErrInvalidAddress)
			assert.False(t, IsValid(tt.address))
		})
	}

	_, err := DecodeWithPrefix("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", PrefixPolkadot)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func genPrefix() gopter.Gen {
	return gen.UInt16Range(0, MaxPrefix).SuchThat(func(p uint16) bool { return ValidPrefix(p) })
}

// Property-based test: decode(encode(key, prefix)) == (key, prefix).
func TestSS58_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("round-trips every valid prefix", prop.ForAll(
		func(key []byte, prefix uint16) bool {
			addr, err := Encode(key, prefix)
			if err != nil {
				return false
			}
			got, gotPrefix, err := Decode(addr)
			return err == nil && gotPrefix == prefix && string(got) == string(key)
		},
		gen.SliceOfN(32, gen.UInt8()),
		genPrefix(),
	))

	properties.Property("round-trips compressed ecdsa keys", prop.ForAll(
		func(key []byte, prefix uint16) bool {
			addr, err := Encode(key, prefix)
			if err != nil {
				return false
			}
			got, gotPrefix, err := Decode(addr)
			return err == nil && gotPrefix == prefix && string(got) == string(key)
		},
		gen.SliceOfN(33, gen.UInt8()),
		genPrefix(),
	))

	properties.TestingRun(t)
}

// Property-based test: altering one byte of the decoded payload is always
// detected.
func TestSS58_PropertyChecksumSensitivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("single byte change is rejected", prop.ForAll(
		func(key []byte, prefix uint16, pos int, delta uint8) bool {
			addr, err := Encode(key, prefix)
			if err != nil {
				return false
			}
			raw, err := base58.Decode(addr)
			if err != nil {
				return false
			}
			raw[pos%len(raw)] ^= delta
			_, _, err = Decode(base58.Encode(raw))
			return err != nil
		},
		gen.SliceOfN(32, gen.UInt8()),
		genPrefix(),
		gen.IntRange(0, 64),
		gen.UInt8Range(1, 255),
	))

	properties.TestingRun(t)
}
