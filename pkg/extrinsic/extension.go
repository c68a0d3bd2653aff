package extrinsic

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
)

// Options carries the per transaction data signed extensions need.
type Options struct {
	Nonce uint64
	Era   Era
	// Tip is paid to the block author on top of the fee. Nil means zero.
	Tip *big.Int
	// BlockHash is the hash of the era's birth block. It is ignored for
	// immortal transactions, which commit to the genesis hash instead.
	BlockHash common.Hash
	// GenesisHash defaults to the runtime's genesis hash.
	GenesisHash common.Hash
	// SpecVersion and TransactionVersion default to the runtime's version.
	SpecVersion        uint32
	TransactionVersion uint32
}

// withDefaults fills unset chain context from rt.
func (o Options) withDefaults(rt *metadata.Runtime) Options {
	if o.GenesisHash == (common.Hash{}) && rt.GenesisHash != "" {
		o.GenesisHash = common.HexToHash(rt.GenesisHash)
	}
	if o.SpecVersion == 0 {
		o.SpecVersion = rt.Version.SpecVersion
	}
	if o.TransactionVersion == 0 {
		o.TransactionVersion = rt.Version.TransactionVersion
	}
	if o.Tip == nil {
		o.Tip = new(big.Int)
	}
	if o.Era.IsImmortal() {
		o.BlockHash = o.GenesisHash
	}
	return o
}

// signedData is what the runtime's signed extensions contribute to an
// extrinsic: extra travels in the extrinsic, additional is only signed.
type signedData struct {
	extra      []byte
	additional []byte
}

func (o Options) signedData(rt *metadata.Runtime) (signedData, error) {
	var sd signedData
	for _, ext := range rt.Extrinsic.SignedExtensions {
		if err := o.appendExtension(&sd, ext, rt.Registry); err != nil {
			return signedData{}, err
		}
	}
	return sd, nil
}

func (o Options) appendExtension(sd *signedData, ext metadata.SignedExtension, reg *scale.Registry) error {
	switch ext.Identifier {
	case "CheckNonZeroSender", "CheckWeight":
	case "CheckSpecVersion":
		sd.additional = binary.LittleEndian.AppendUint32(sd.additional, o.SpecVersion)
	case "CheckTxVersion":
		sd.additional = binary.LittleEndian.AppendUint32(sd.additional, o.TransactionVersion)
	case "CheckGenesis":
		sd.additional = append(sd.additional, o.GenesisHash.Bytes()...)
	case "CheckMortality", "CheckEra":
		sd.extra = o.Era.AppendEncode(sd.extra)
		sd.additional = append(sd.additional, o.BlockHash.Bytes()...)
	case "CheckNonce":
		sd.extra = scale.AppendCompact(sd.extra, o.Nonce)
	case "ChargeTransactionPayment":
		tip, err := scale.EncodeCompactBig(o.Tip)
		if err != nil {
			return fmt.Errorf("invalid tip: %w", err)
		}
		sd.extra = append(sd.extra, tip...)
	case "ChargeAssetTxPayment":
		tip, err := scale.EncodeCompactBig(o.Tip)
		if err != nil {
			return fmt.Errorf("invalid tip: %w", err)
		}
		// Fees are paid in the native asset: asset_id is None.
		sd.extra = append(append(sd.extra, tip...), 0)
	case "CheckMetadataHash":
		// Mode::Disabled and no metadata hash.
		sd.extra = append(sd.extra, 0)
		sd.additional = append(sd.additional, 0)
	default:
		if !zeroSized(reg, ext.Type, 0) || !zeroSized(reg, ext.AdditionalSigned, 0) {
			return fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext.Identifier)
		}
	}
	return nil
}

// zeroSized reports whether every value of id encodes to no bytes.
func zeroSized(reg *scale.Registry, id scale.TypeID, depth int) bool {
	if id == "" {
		return true
	}
	if depth > 16 {
		return false
	}
	_, def, err := reg.Resolve(id)
	if err != nil {
		return false
	}
	switch def.Kind {
	case scale.KindTuple, scale.KindComposite:
		for _, f := range def.Fields {
			if !zeroSized(reg, f.Type, depth+1) {
				return false
			}
		}
		return true
	case scale.KindArray:
		return def.Len == 0 || zeroSized(reg, def.Elem, depth+1)
	}
	return false
}
