package extrinsic

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
)

// Call is an encoded pallet call.
type Call struct {
	Module      string
	Name        string
	PalletIndex uint8
	CallIndex   uint8
	Args        scale.Value
	// Data is the call as it appears in an extrinsic: pallet index, call
	// index and the encoded arguments.
	Data []byte
}

// NewCall encodes args, a composite of the call's named arguments, against
// the argument types rt declares for module.name.
func NewCall(rt *metadata.Runtime, module, name string, args scale.Value) (*Call, error) {
	def, err := rt.Call(module, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCall, err)
	}
	if !args.IsValid() {
		args = scale.Composite()
	}

	data := []byte{def.PalletIndex, def.Index}
	data, err = scale.AppendEncode(data, args, def.ArgsType, rt.Registry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidCall, module, name, err)
	}

	return &Call{
		Module:      def.Pallet,
		Name:        def.Name,
		PalletIndex: def.PalletIndex,
		CallIndex:   def.Index,
		Args:        args,
		Data:        data,
	}, nil
}

// DecodeCall parses an encoded call and returns the number of bytes
// consumed.
func DecodeCall(rt *metadata.Runtime, data []byte) (*Call, int, error) {
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("%w: call shorter than its index", ErrInvalidCall)
	}
	def, err := rt.CallByIndex(data[0], data[1])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidCall, err)
	}
	args, n, err := scale.Decode(data[2:], def.ArgsType, rt.Registry)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s.%s: %w", ErrInvalidCall, def.Pallet, def.Name, err)
	}

	return &Call{
		Module:      def.Pallet,
		Name:        def.Name,
		PalletIndex: def.PalletIndex,
		CallIndex:   def.Index,
		Args:        args,
		Data:        append([]byte(nil), data[:2+n]...),
	}, 2 + n, nil
}

func (c *Call) Hex() string {
	return hexutil.Encode(c.Data)
}

func (c *Call) String() string {
	return fmt.Sprintf("%s.%s(%s)", c.Module, c.Name, c.Args)
}
