package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/extrinsic"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
)

// DefaultEraPeriod is the number of blocks a signed extrinsic stays valid
// unless SignOptions say otherwise.
const DefaultEraPeriod = 64

// ComposeCall builds module.function with params keyed by argument name.
// Values are Go values or scale.Values; account arguments also take ss58
// addresses and sign.AccountIDs.
func (c *Client) ComposeCall(ctx context.Context, module, function string, params map[string]any) (*extrinsic.Call, error) {
	rt, err := c.Runtime(ctx, "")
	if err != nil {
		return nil, err
	}
	def, err := rt.Call(module, function)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", extrinsic.ErrInvalidCall, err)
	}

	fields := make([]scale.NamedValue, 0, len(def.Args))
	known := make(map[string]bool, len(def.Args))
	for _, arg := range def.Args {
		known[arg.Name] = true
		x, ok := params[arg.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s: missing argument %s", extrinsic.ErrInvalidCall, module, function, arg.Name)
		}
		v, err := argValue(rt.Registry, arg.Type, x)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s argument %s: %w", extrinsic.ErrInvalidCall, module, function, arg.Name, err)
		}
		fields = append(fields, scale.Named(arg.Name, v))
	}
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s.%s has no argument %s", extrinsic.ErrInvalidCall, module, function, name)
		}
	}

	return extrinsic.NewCall(rt, module, function, scale.Composite(fields...))
}

// SignOptions tune CreateSignedExtrinsic.
type SignOptions struct {
	// Nonce overrides the signer's next account index.
	Nonce *uint64
	// Period is the number of blocks the extrinsic stays valid, rounded to
	// a power of two. Zero means DefaultEraPeriod.
	Period uint64
	// Immortal makes the extrinsic valid forever.
	Immortal bool
	// Tip is paid to the block author on top of the fee.
	Tip *big.Int
}

// AccountNonce returns the next transaction index of id, counting
// transactions waiting in the pool.
func (c *Client) AccountNonce(ctx context.Context, id sign.AccountID) (uint64, error) {
	var nonce uint64
	if err := c.Call(ctx, "system_accountNextIndex", []any{c.Address(id)}, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// CreateSignedExtrinsic signs call with signer. The nonce is fetched from
// the node and the era starts at the best block unless opts say
// otherwise.
func (c *Client) CreateSignedExtrinsic(ctx context.Context, call *extrinsic.Call, signer sign.Signer, opts SignOptions) (*extrinsic.Extrinsic, error) {
	if signer == nil {
		return nil, extrinsic.ErrMissingSigner
	}
	rt, err := c.Runtime(ctx, "")
	if err != nil {
		return nil, err
	}

	xopts := extrinsic.Options{Tip: opts.Tip}
	if opts.Nonce != nil {
		xopts.Nonce = *opts.Nonce
	} else if xopts.Nonce, err = c.AccountNonce(ctx, signer.PublicKey().AccountID()); err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	if !opts.Immortal {
		period := opts.Period
		if period == 0 {
			period = DefaultEraPeriod
		}
		header, err := c.Header(ctx, "")
		if err != nil {
			return nil, err
		}
		current := uint64(header.Number)
		xopts.Era = extrinsic.NewMortalEra(current, period)

		birth, err := c.BlockHash(ctx, xopts.Era.Birth(current))
		if err != nil {
			return nil, err
		}
		xopts.BlockHash = common.HexToHash(birth)
	}

	ext, err := extrinsic.NewSigned(rt, call, signer, xopts)
	if err != nil {
		return nil, err
	}
	c.lg.Debug("extrinsic signed", "call", call.String(), "nonce", xopts.Nonce, "era", xopts.Era.String(), "hash", ext.Hash().Hex())
	return ext, nil
}

// WaitFor selects how long SubmitExtrinsic waits.
type WaitFor int

const (
	// WaitNone returns once the node accepted the extrinsic into its pool.
	WaitNone WaitFor = iota
	// WaitInBlock returns once the extrinsic is in a block.
	WaitInBlock
	// WaitFinalized returns once the block holding the extrinsic is final.
	WaitFinalized
)

// Receipt tells what became of a submitted extrinsic.
type Receipt struct {
	ExtrinsicHash common.Hash
	// BlockHash is the block the extrinsic was included in, zero with
	// WaitNone.
	BlockHash common.Hash
	Finalized bool
}

// SubmitExtrinsic sends ext to the node and waits as wait says. While
// waiting, a dropped, invalid or usurped extrinsic fails with
// ErrExtrinsicFailed.
func (c *Client) SubmitExtrinsic(ctx context.Context, ext *extrinsic.Extrinsic, wait WaitFor) (*Receipt, error) {
	receipt := &Receipt{ExtrinsicHash: ext.Hash()}
	lg := c.lg.WithKV("extrinsic", receipt.ExtrinsicHash.Hex())

	if wait == WaitNone {
		var hash common.Hash
		if err := c.Call(ctx, "author_submitExtrinsic", []any{ext.Hex()}, &hash); err != nil {
			return nil, err
		}
		receipt.ExtrinsicHash = hash
		lg.Info("extrinsic submitted")
		return receipt, nil
	}

	sub, err := c.rpc.Subscribe(c.logContext(ctx), "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", []any{ext.Hex()})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sub.Unsubscribe(context.WithoutCancel(ctx)); err != nil {
			lg.Debug("failed to unwatch extrinsic", "error", err)
		}
	}()

	for {
		var status TransactionStatus
		if err := sub.Next(ctx, &status); err != nil {
			return nil, err
		}
		lg.Debug("extrinsic status", "status", status.String())

		switch {
		case status.Kind == StatusInBlock && wait == WaitInBlock:
			receipt.BlockHash = status.Hash
			lg.Info("extrinsic included", "block", status.Hash.Hex())
			return receipt, nil
		case status.Kind == StatusFinalized:
			receipt.BlockHash = status.Hash
			receipt.Finalized = true
			lg.Info("extrinsic finalized", "block", status.Hash.Hex())
			return receipt, nil
		case status.Failed():
			return nil, fmt.Errorf("%w: %s", ErrExtrinsicFailed, status)
		}
	}
}

// Transaction pool statuses reported while watching an extrinsic.
const (
	StatusFuture          = "future"
	StatusReady           = "ready"
	StatusBroadcast       = "broadcast"
	StatusInBlock         = "inBlock"
	StatusRetracted       = "retracted"
	StatusFinalityTimeout = "finalityTimeout"
	StatusFinalized       = "finalized"
	StatusUsurped         = "usurped"
	StatusDropped         = "dropped"
	StatusInvalid         = "invalid"
)

// TransactionStatus is one notification of author_submitAndWatchExtrinsic.
type TransactionStatus struct {
	Kind string
	// Hash is the block hash of inBlock, retracted, finalityTimeout and
	// finalized statuses, and the replacing extrinsic of usurped.
	Hash common.Hash
	// Peers lists the peers a broadcast status reached.
	Peers []string
}

func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		*s = TransactionStatus{Kind: kind}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid transaction status %s", data)
	}
	if len(obj) != 1 {
		return fmt.Errorf("invalid transaction status %s", data)
	}
	for kind, raw := range obj {
		*s = TransactionStatus{Kind: kind}
		if kind == StatusBroadcast {
			return json.Unmarshal(raw, &s.Peers)
		}
		return json.Unmarshal(raw, &s.Hash)
	}
	return nil
}

// Failed reports whether the extrinsic will not be included.
func (s TransactionStatus) Failed() bool {
	switch s.Kind {
	case StatusUsurped, StatusDropped, StatusInvalid, StatusFinalityTimeout:
		return true
	}
	return false
}

func (s TransactionStatus) String() string {
	switch s.Kind {
	case StatusInBlock, StatusRetracted, StatusFinalityTimeout, StatusFinalized, StatusUsurped:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Hash.Hex())
	case StatusBroadcast:
		return fmt.Sprintf("%s(%d peers)", s.Kind, len(s.Peers))
	}
	return s.Kind
}
