package extrinsic_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"
	"slices"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/extrinsic"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata/metadatatest"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/storage"
)

const bobHex = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"

func testRuntime(t *testing.T) *metadata.Runtime {
	t.Helper()

	raw, err := metadatatest.Encode(15)
	require.NoError(t, err)
	rt, err := metadata.Decode(raw, nil)
	require.NoError(t, err)
	rt.GenesisHash = metadatatest.GenesisHash
	rt.Version = metadatatest.RuntimeVersion()
	return rt
}

func transferCall(t *testing.T, rt *metadata.Runtime, value uint64) *extrinsic.Call {
	t.Helper()

	call, err := extrinsic.NewCall(rt, "Balances", "transfer_keep_alive", scale.Composite(
		scale.Named("dest", scale.VariantTuple("Id", scale.Bytes(hexutil.MustDecode(bobHex)))),
		scale.Named("value", scale.Uint(value)),
	))
	require.NoError(t, err)
	return call
}

// additionalSigned is what the fixture's extensions sign without sending.
func additionalSigned(blockHash common.Hash) []byte {
	out := binary.LittleEndian.AppendUint32(nil, metadatatest.SpecVersion)
	out = binary.LittleEndian.AppendUint32(out, metadatatest.TransactionVersion)
	out = append(out, common.HexToHash(metadatatest.GenesisHash).Bytes()...)
	out = append(out, blockHash.Bytes()...)
	return append(out, 0)
}

func TestNewCall(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1_000_000)

	assert.Equal(t, "0x0503"+"00"+bobHex[2:]+"02093d00", call.Hex())
	assert.Equal(t, uint8(metadatatest.BalancesIndex), call.PalletIndex)
	assert.Equal(t, uint8(3), call.CallIndex)

	dec, n, err := extrinsic.DecodeCall(rt, append(call.Data, 0xaa))
	require.NoError(t, err)
	assert.Equal(t, len(call.Data), n)
	assert.Equal(t, "Balances", dec.Module)
	assert.Equal(t, "transfer_keep_alive", dec.Name)
	assert.Equal(t, call.Data, dec.Data)
	value, ok := dec.Args.Field("value")
	require.True(t, ok)
	assert.True(t, value.Equal(scale.Uint(1_000_000)))

	remark, err := extrinsic.NewCall(rt, "System", "remark", scale.Composite(
		scale.Named("remark", scale.Bytes([]byte("hi"))),
	))
	require.NoError(t, err)
	assert.Equal(t, "0x0000086869", remark.Hex())
}

func TestNewCall_Invalid(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	bob := scale.Bytes(hexutil.MustDecode(bobHex))

	tests := []struct {
		name   string
		module string
		call   string
		args   scale.Value
	}{
		{"unknown pallet", "Staking", "bond", scale.Composite()},
		{"unknown call", "Balances", "burn", scale.Composite()},
		{"missing argument", "Balances", "transfer_keep_alive", scale.Composite(
			scale.Named("dest", scale.VariantTuple("Id", bob)),
		)},
		{"unknown address variant", "Balances", "transfer_keep_alive", scale.Composite(
			scale.Named("dest", scale.VariantTuple("Ethereum", bob)),
			scale.Named("value", scale.Uint(1)),
		)},
		{"wrong argument type", "SubtensorModule", "add_stake", scale.Composite(
			scale.Named("hotkey", bob),
			scale.Named("amount_staked", scale.String("lots")),
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := extrinsic.NewCall(rt, tt.module, tt.call, tt.args)
			assert.ErrorIs(t, err, extrinsic.ErrInvalidCall)
		})
	}

	_, _, err := extrinsic.DecodeCall(rt, []byte{metadatatest.BalancesIndex, 9})
	assert.ErrorIs(t, err, extrinsic.ErrInvalidCall)
	assert.ErrorIs(t, err, metadata.ErrCallNotFound)
}

func TestSigningPayload(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1_000_000)
	genesis := common.HexToHash(metadatatest.GenesisHash)

	t.Run("immortal", func(t *testing.T) {
		t.Parallel()

		payload, err := extrinsic.SigningPayload(rt, call, extrinsic.Options{Nonce: 5})
		require.NoError(t, err)

		// era, nonce, tip, metadata hash mode
		extra := []byte{0x00, 0x14, 0x00, 0x00}
		want := slices.Concat(call.Data, extra, additionalSigned(genesis))
		assert.Equal(t, want, payload)
	})

	t.Run("mortal with tip", func(t *testing.T) {
		t.Parallel()

		era := extrinsic.NewMortalEra(100, 64)
		birth := common.HexToHash("0x01")
		payload, err := extrinsic.SigningPayload(rt, call, extrinsic.Options{
			Era:       era,
			Nonce:     64,
			Tip:       big.NewInt(1000),
			BlockHash: birth,
		})
		require.NoError(t, err)

		extra := slices.Concat(era.Encode(), scale.EncodeCompact(64), scale.EncodeCompact(1000), []byte{0})
		want := slices.Concat(call.Data, extra, additionalSigned(birth))
		assert.Equal(t, want, payload)
	})

	t.Run("long payload is hashed", func(t *testing.T) {
		t.Parallel()

		remark, err := extrinsic.NewCall(rt, "System", "remark", scale.Composite(
			scale.Named("remark", scale.Bytes(bytes.Repeat([]byte{0x42}, 300))),
		))
		require.NoError(t, err)

		payload, err := extrinsic.SigningPayload(rt, remark, extrinsic.Options{})
		require.NoError(t, err)

		raw := slices.Concat(remark.Data, []byte{0x00, 0x00, 0x00, 0x00}, additionalSigned(genesis))
		assert.Equal(t, storage.Blake2b256(raw), payload)
	})
}

func TestNewSigned(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1_000_000)

	for _, scheme := range []sign.Scheme{sign.Ed25519, sign.Sr25519, sign.Ecdsa} {
		t.Run(scheme.String(), func(t *testing.T) {
			t.Parallel()

			kp, err := sign.FromURI("//Alice", scheme)
			require.NoError(t, err)

			opts := extrinsic.Options{
				Era:       extrinsic.NewMortalEra(1000, 64),
				Nonce:     7,
				Tip:       big.NewInt(10),
				BlockHash: common.HexToHash("0xabcdef"),
			}
			ext, err := extrinsic.NewSigned(rt, call, kp, opts)
			require.NoError(t, err)
			assert.True(t, ext.Signed)
			assert.Equal(t, kp.AccountID(), ext.Signer)
			assert.Equal(t, scheme, ext.Signature.Scheme)

			payload, err := extrinsic.SigningPayload(rt, call, opts)
			require.NoError(t, err)
			assert.True(t, kp.Verify(payload, ext.Signature.Signature))

			// length prefix, version, MultiAddress::Id and the signer
			raw := ext.Bytes()
			_, n, err := scale.DecodeCompact(raw)
			require.NoError(t, err)
			assert.Equal(t, byte(0x84), raw[n])
			assert.Equal(t, byte(0x00), raw[n+1])
			assert.Equal(t, kp.AccountID().Bytes(), raw[n+2:n+34])
			assert.Equal(t, byte(scheme), raw[n+34])
			assert.True(t, bytes.HasSuffix(raw, call.Data))

			dec, err := extrinsic.Decode(rt, raw)
			require.NoError(t, err)
			assert.True(t, dec.Signed)
			assert.Equal(t, ext.Signer, dec.Signer)
			assert.Equal(t, ext.Signature, dec.Signature)
			assert.Equal(t, opts.Era, dec.Era)
			assert.Equal(t, uint64(7), dec.Nonce)
			assert.Equal(t, int64(10), dec.Tip.Int64())
			assert.Equal(t, call.Data, dec.Call.Data)

			assert.Equal(t, common.BytesToHash(storage.Blake2b256(raw)), ext.Hash())
			assert.Equal(t, hexutil.Encode(raw), ext.Hex())
		})
	}
}

// refusingSigner has a public key but never produces a signature.
type refusingSigner struct{ *sign.MockSigner }

func (refusingSigner) Sign([]byte) (sign.Signature, error) { return nil, errors.New("locked") }

func TestNewSigned_SignsPayload(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	signer := sign.NewMockSigner("hotkey")

	remark, err := extrinsic.NewCall(rt, "System", "remark", scale.Composite(
		scale.Named("remark", scale.Bytes(bytes.Repeat([]byte{0x42}, 300))),
	))
	require.NoError(t, err)

	tests := []struct {
		name string
		call *extrinsic.Call
	}{
		{"short payload", transferCall(t, rt, 5)},
		{"hashed payload", remark},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := extrinsic.Options{Nonce: 3}
			ext, err := extrinsic.NewSigned(rt, tt.call, signer, opts)
			require.NoError(t, err)

			payload, err := extrinsic.SigningPayload(rt, tt.call, opts)
			require.NoError(t, err)
			want, err := signer.Sign(payload)
			require.NoError(t, err)
			assert.Equal(t, want, ext.Signature.Signature)
			assert.Equal(t, sign.Sr25519, ext.Signature.Scheme)
			assert.Equal(t, signer.PublicKey().AccountID(), ext.Signer)

			dec, err := extrinsic.Decode(rt, ext.Bytes())
			require.NoError(t, err)
			assert.Equal(t, ext.Signature, dec.Signature)
			assert.Equal(t, tt.call.Data, dec.Call.Data)
		})
	}

	t.Run("signer failure", func(t *testing.T) {
		t.Parallel()

		_, err := extrinsic.NewSigned(rt, transferCall(t, rt, 5), refusingSigner{signer}, extrinsic.Options{})
		assert.ErrorContains(t, err, "locked")
	})
}

func TestNewSigned_Deterministic(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1)
	kp, err := sign.FromURI("//Alice", sign.Ed25519)
	require.NoError(t, err)

	a, err := extrinsic.NewSigned(rt, call, kp, extrinsic.Options{Nonce: 1})
	require.NoError(t, err)
	b, err := extrinsic.NewSigned(rt, call, kp, extrinsic.Options{Nonce: 1})
	require.NoError(t, err)
	assert.Equal(t, a.Hex(), b.Hex())

	c, err := extrinsic.NewSigned(rt, call, kp, extrinsic.Options{Nonce: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestNewSigned_Errors(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1)
	kp, err := sign.FromURI("//Alice", sign.Sr25519)
	require.NoError(t, err)

	_, err = extrinsic.NewSigned(rt, call, nil, extrinsic.Options{})
	assert.ErrorIs(t, err, extrinsic.ErrMissingSigner)

	_, err = extrinsic.NewSigned(rt, nil, kp, extrinsic.Options{})
	assert.ErrorIs(t, err, extrinsic.ErrInvalidCall)

	_, err = extrinsic.NewSigned(rt, call, kp, extrinsic.Options{Tip: big.NewInt(-1)})
	assert.Error(t, err)

	custom := *rt
	custom.Extrinsic.SignedExtensions = append(slices.Clone(rt.Extrinsic.SignedExtensions), metadata.SignedExtension{
		Identifier:       "CheckUnitOnly",
		Type:             scale.PortableID(metadatatest.TypeUnit),
		AdditionalSigned: scale.PortableID(metadatatest.TypeUnit),
	})
	_, err = extrinsic.NewSigned(&custom, call, kp, extrinsic.Options{})
	assert.NoError(t, err, "extensions without data are skipped")

	custom.Extrinsic.SignedExtensions = append(custom.Extrinsic.SignedExtensions, metadata.SignedExtension{
		Identifier:       "CheckUnknown",
		Type:             scale.PortableID(metadatatest.TypeU32),
		AdditionalSigned: scale.PortableID(metadatatest.TypeUnit),
	})
	_, err = extrinsic.NewSigned(&custom, call, kp, extrinsic.Options{})
	assert.ErrorIs(t, err, extrinsic.ErrUnsupportedExtension)
}

func TestNewUnsigned(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1_000_000)

	ext := extrinsic.NewUnsigned(call)
	assert.False(t, ext.Signed)
	want := slices.Concat(scale.EncodeCompact(uint64(len(call.Data)+1)), []byte{0x04}, call.Data)
	assert.Equal(t, want, ext.Bytes())

	dec, err := extrinsic.Decode(rt, ext.Bytes())
	require.NoError(t, err)
	assert.False(t, dec.Signed)
	assert.Equal(t, "transfer_keep_alive", dec.Call.Name)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	rt := testRuntime(t)
	call := transferCall(t, rt, 1)
	valid := extrinsic.NewUnsigned(call).Bytes()

	wrongVersion := slices.Clone(valid)
	wrongVersion[1] = 0x05

	trailing := slices.Concat(scale.EncodeCompact(uint64(len(call.Data)+2)), []byte{0x04}, call.Data, []byte{0x00})

	tests := map[string][]byte{
		"empty":           nil,
		"length mismatch": valid[:len(valid)-1],
		"wrong version":   wrongVersion,
		"trailing bytes":  trailing,
		"truncated signed": slices.Concat(
			scale.EncodeCompact(3), []byte{0x84, 0x00, 0x01},
		),
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := extrinsic.Decode(rt, raw)
			assert.ErrorIs(t, err, extrinsic.ErrInvalidExtrinsic)
		})
	}
}
