package extrinsic

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/storage"
)

const (
	// Version is the extrinsic format version this package builds.
	Version = 4

	signedFlag = 0x80
	// Payloads above this size are signed through their blake2-256 hash.
	maxUnhashedPayload = 256
)

// Extrinsic is an encoded transaction, signed or bare.
type Extrinsic struct {
	Version   uint8
	Signed    bool
	Signer    sign.AccountID
	Signature sign.MultiSignature
	Era       Era
	Nonce     uint64
	Tip       *big.Int
	Call      *Call

	encoded []byte
}

// SigningPayload returns the bytes a signer signs for call under opts: the
// call, the extensions' extra data and their additional signed data,
// hashed when longer than 256 bytes.
func SigningPayload(rt *metadata.Runtime, call *Call, opts Options) ([]byte, error) {
	opts = opts.withDefaults(rt)
	sd, err := opts.signedData(rt)
	if err != nil {
		return nil, err
	}
	return signingPayload(call, sd), nil
}

func signingPayload(call *Call, sd signedData) []byte {
	payload := make([]byte, 0, len(call.Data)+len(sd.extra)+len(sd.additional))
	payload = append(payload, call.Data...)
	payload = append(payload, sd.extra...)
	payload = append(payload, sd.additional...)
	if len(payload) > maxUnhashedPayload {
		return storage.Blake2b256(payload)
	}
	return payload
}

// NewSigned builds a signed extrinsic for call. The signer's account is
// the sender; its signature covers the payload SigningPayload describes.
func NewSigned(rt *metadata.Runtime, call *Call, signer sign.Signer, opts Options) (*Extrinsic, error) {
	if signer == nil {
		return nil, ErrMissingSigner
	}
	if call == nil {
		return nil, fmt.Errorf("%w: nil call", ErrInvalidCall)
	}

	opts = opts.withDefaults(rt)
	sd, err := opts.signedData(rt)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(signingPayload(call, sd))
	if err != nil {
		return nil, fmt.Errorf("failed to sign extrinsic: %w", err)
	}
	pub := signer.PublicKey()
	multi := sign.MultiSignature{Scheme: pub.Scheme(), Signature: sig}

	body := []byte{Version | signedFlag}
	body, err = appendAddress(body, rt, pub.AccountID())
	if err != nil {
		return nil, err
	}
	body, err = appendSignature(body, rt, multi)
	if err != nil {
		return nil, err
	}
	body = append(body, sd.extra...)
	body = append(body, call.Data...)

	return &Extrinsic{
		Version:   Version,
		Signed:    true,
		Signer:    pub.AccountID(),
		Signature: multi,
		Era:       opts.Era,
		Nonce:     opts.Nonce,
		Tip:       opts.Tip,
		Call:      call,
		encoded:   lengthPrefixed(body),
	}, nil
}

// NewUnsigned builds a bare extrinsic, as used for inherents and
// unsigned transactions.
func NewUnsigned(call *Call) *Extrinsic {
	body := append([]byte{Version}, call.Data...)
	return &Extrinsic{Version: Version, Call: call, encoded: lengthPrefixed(body)}
}

func lengthPrefixed(body []byte) []byte {
	out := scale.AppendCompact(make([]byte, 0, len(body)+5), uint64(len(body)))
	return append(out, body...)
}

func appendAddress(dst []byte, rt *metadata.Runtime, id sign.AccountID) ([]byte, error) {
	v := scale.Bytes(id[:])
	if _, def, err := rt.Registry.Resolve(rt.Extrinsic.AddressType); err == nil && def.Kind == scale.KindVariant {
		v = scale.VariantTuple("Id", v)
	}
	out, err := scale.AppendEncode(dst, v, rt.Extrinsic.AddressType, rt.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signer address: %w", err)
	}
	return out, nil
}

var signatureVariants = map[sign.Scheme]string{
	sign.Ed25519: "Ed25519",
	sign.Sr25519: "Sr25519",
	sign.Ecdsa:   "Ecdsa",
}

func appendSignature(dst []byte, rt *metadata.Runtime, sig sign.MultiSignature) ([]byte, error) {
	v := scale.Bytes(sig.Signature)
	if _, def, err := rt.Registry.Resolve(rt.Extrinsic.SignatureType); err == nil && def.Kind == scale.KindVariant {
		v = scale.VariantTuple(signatureVariants[sig.Scheme], v)
	}
	out, err := scale.AppendEncode(dst, v, rt.Extrinsic.SignatureType, rt.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s signature: %w", sig.Scheme, err)
	}
	return out, nil
}

// Bytes returns the encoded extrinsic, length prefix included.
func (e *Extrinsic) Bytes() []byte {
	return append([]byte(nil), e.encoded...)
}

// Hex returns the encoded extrinsic as author_submitExtrinsic takes it.
func (e *Extrinsic) Hex() string {
	return hexutil.Encode(e.encoded)
}

// Hash returns the blake2-256 hash nodes identify the extrinsic by.
func (e *Extrinsic) Hash() common.Hash {
	return common.BytesToHash(storage.Blake2b256(e.encoded))
}

// Decode parses an encoded extrinsic. Signed extrinsics are decoded with
// the address, signature and signed extension types of rt.
func Decode(rt *metadata.Runtime, raw []byte) (*Extrinsic, error) {
	length, n, err := scale.DecodeCompact(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExtrinsic, err)
	}
	body := raw[n:]
	if uint64(len(body)) != length {
		return nil, fmt.Errorf("%w: length prefix %d, body %d bytes", ErrInvalidExtrinsic, length, len(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidExtrinsic)
	}

	ext := &Extrinsic{
		Version: body[0] &^ signedFlag,
		Signed:  body[0]&signedFlag != 0,
		Tip:     new(big.Int),
		encoded: append([]byte(nil), raw...),
	}
	if ext.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidExtrinsic, ext.Version)
	}

	d := &bodyDecoder{rt: rt, data: body, off: 1}
	if ext.Signed {
		if err := d.signature(ext); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExtrinsic, err)
		}
	}

	call, n, err := DecodeCall(rt, body[d.off:])
	if err != nil {
		return nil, err
	}
	if d.off+n != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidExtrinsic, len(body)-d.off-n)
	}
	ext.Call = call
	return ext, nil
}

type bodyDecoder struct {
	rt   *metadata.Runtime
	data []byte
	off  int
}

func (d *bodyDecoder) value(id scale.TypeID) (scale.Value, error) {
	v, n, err := scale.Decode(d.data[d.off:], id, d.rt.Registry)
	if err != nil {
		return scale.Value{}, err
	}
	d.off += n
	return v, nil
}

// signature reads the signer, signature and signed extension data.
func (d *bodyDecoder) signature(ext *Extrinsic) error {
	addr, err := d.value(d.rt.Extrinsic.AddressType)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if name, _, ok := addr.Variant(); ok {
		if name != "Id" {
			return fmt.Errorf("address: unsupported variant %s", name)
		}
		addr, _ = addr.Index(0)
	}
	id, ok := addr.AsBytes()
	if !ok {
		return errors.New("address: not an account id")
	}
	if ext.Signer, err = sign.NewAccountID(id); err != nil {
		return fmt.Errorf("address: %w", err)
	}

	sig, err := d.value(d.rt.Extrinsic.SignatureType)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if name, _, ok := sig.Variant(); ok {
		scheme, err := sign.ParseScheme(name)
		if err != nil {
			return fmt.Errorf("signature: %w", err)
		}
		ext.Signature.Scheme = scheme
		sig, _ = sig.Index(0)
	}
	if ext.Signature.Signature, ok = sig.AsBytes(); !ok {
		return errors.New("signature: not a byte array")
	}

	for _, se := range d.rt.Extrinsic.SignedExtensions {
		start := d.off
		if _, err := d.value(se.Type); err != nil {
			return fmt.Errorf("%s: %w", se.Identifier, err)
		}
		data := d.data[start:d.off]
		switch se.Identifier {
		case "CheckMortality", "CheckEra":
			if ext.Era, _, err = DecodeEra(data); err != nil {
				return err
			}
		case "CheckNonce":
			if ext.Nonce, _, err = scale.DecodeCompact(data); err != nil {
				return fmt.Errorf("nonce: %w", err)
			}
		case "ChargeTransactionPayment", "ChargeAssetTxPayment":
			if ext.Tip, _, err = scale.DecodeCompactBig(data); err != nil {
				return fmt.Errorf("tip: %w", err)
			}
		}
	}
	return nil
}
