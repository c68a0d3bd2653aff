package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc"
)

// BlockNumber is a block height. Nodes send it as a hex string.
type BlockNumber uint64

func (n *BlockNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var u uint64
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("invalid block number %s", data)
		}
		*n = BlockNumber(u)
		return nil
	}

	u, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid block number %q: %w", s, err)
	}
	*n = BlockNumber(u)
	return nil
}

func (n BlockNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.EncodeUint64(uint64(n)))
}

// Header is a block header.
type Header struct {
	ParentHash     common.Hash `json:"parentHash"`
	Number         BlockNumber `json:"number"`
	StateRoot      common.Hash `json:"stateRoot"`
	ExtrinsicsRoot common.Hash `json:"extrinsicsRoot"`
	Digest         Digest      `json:"digest"`
}

// Digest holds the encoded digest items of a header.
type Digest struct {
	Logs []hexutil.Bytes `json:"logs"`
}

// Properties are the chain properties a node reports.
type Properties struct {
	SS58Format    *uint16  `json:"ss58Format,omitempty"`
	TokenSymbol   []string `json:"tokenSymbol,omitempty"`
	TokenDecimals []uint32 `json:"tokenDecimals,omitempty"`
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw struct {
		SS58Format    *uint16         `json:"ss58Format"`
		TokenSymbol   json.RawMessage `json:"tokenSymbol"`
		TokenDecimals json.RawMessage `json:"tokenDecimals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.SS58Format = raw.SS58Format
	if err := oneOrMany(raw.TokenSymbol, &p.TokenSymbol); err != nil {
		return fmt.Errorf("tokenSymbol: %w", err)
	}
	if err := oneOrMany(raw.TokenDecimals, &p.TokenDecimals); err != nil {
		return fmt.Errorf("tokenDecimals: %w", err)
	}
	return nil
}

// oneOrMany decodes a JSON value that is either a T or a list of T.
func oneOrMany[T any](raw json.RawMessage, dst *[]T) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err == nil {
		return nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return err
	}
	*dst = []T{one}
	return nil
}

// BlockHash returns the hash of block number n on the best chain.
func (c *Client) BlockHash(ctx context.Context, n uint64) (string, error) {
	var hash *string
	if err := c.Call(ctx, "chain_getBlockHash", []any{n}, &hash); err != nil {
		return "", err
	}
	if hash == nil {
		return "", fmt.Errorf("%w: number %d", ErrBlockNotFound, n)
	}
	return *hash, nil
}

// GenesisHash returns the hash of block 0.
func (c *Client) GenesisHash(ctx context.Context) (string, error) {
	return c.resolver.GenesisHash(c.logContext(ctx))
}

// FinalizedHead returns the hash of the last finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (string, error) {
	var hash string
	if err := c.Call(ctx, "chain_getFinalizedHead", nil, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// Header returns the header of blockHash, or of the best block when
// blockHash is empty.
func (c *Client) Header(ctx context.Context, blockHash string) (*Header, error) {
	var header *Header
	if err := c.Call(ctx, "chain_getHeader", atBlock(blockHash), &header); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, blockHash)
	}
	return header, nil
}

// Properties returns the chain properties, which include the address
// format the chain uses.
func (c *Client) Properties(ctx context.Context) (Properties, error) {
	var props Properties
	if err := c.Call(ctx, "system_properties", nil, &props); err != nil {
		return Properties{}, err
	}
	return props, nil
}

// HeadSubscription yields block headers as the node announces them.
type HeadSubscription struct {
	sub *rpc.Subscription
}

// SubscribeNewHeads follows the best chain.
func (c *Client) SubscribeNewHeads(ctx context.Context) (*HeadSubscription, error) {
	return c.subscribeHeads(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
}

// SubscribeFinalizedHeads follows finalized blocks.
func (c *Client) SubscribeFinalizedHeads(ctx context.Context) (*HeadSubscription, error) {
	return c.subscribeHeads(ctx, "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
}

func (c *Client) subscribeHeads(ctx context.Context, method, unsubscribeMethod string) (*HeadSubscription, error) {
	sub, err := c.rpc.Subscribe(c.logContext(ctx), method, unsubscribeMethod, nil)
	if err != nil {
		return nil, err
	}
	return &HeadSubscription{sub: sub}, nil
}

// Next blocks until the next header arrives.
func (s *HeadSubscription) Next(ctx context.Context) (*Header, error) {
	var header Header
	if err := s.sub.Next(ctx, &header); err != nil {
		return nil, err
	}
	return &header, nil
}

// Unsubscribe stops the subscription.
func (s *HeadSubscription) Unsubscribe(ctx context.Context) error {
	return s.sub.Unsubscribe(ctx)
}

// atBlock returns the optional trailing block hash parameter.
func atBlock(blockHash string) []any {
	if blockHash == "" {
		return nil
	}
	return []any{blockHash}
}
