package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
)

// DefaultCacheSize is the number of runtimes a Resolver keeps in memory.
const DefaultCacheSize = 16

// Caller issues JSON-RPC calls to a node. The transport's Client
// implements it.
type Caller interface {
	Call(ctx context.Context, method string, params []any, result any) error
}

// Key identifies a runtime: the chain it belongs to and its spec version.
type Key struct {
	Genesis     string
	SpecVersion uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d", k.Genesis, k.SpecVersion)
}

// Resolver fetches, decodes and caches runtime metadata. Metadata is
// fetched once per (genesis, spec version); concurrent requests for the
// same runtime share one fetch.
type Resolver struct {
	caller Caller
	base   *scale.Registry
	store  Store
	cache  *lru.Cache[Key, *Runtime]
	group  singleflight.Group

	mu      sync.Mutex
	genesis string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	store     Store
	cacheSize int
}

// WithStore makes the resolver consult and fill a persistent store.
func WithStore(s Store) ResolverOption {
	return func(o *resolverOptions) { o.store = s }
}

// WithCacheSize bounds the number of runtimes kept in memory.
func WithCacheSize(n int) ResolverOption {
	return func(o *resolverOptions) { o.cacheSize = n }
}

// NewResolver creates a resolver whose runtimes extend base, normally the
// registry of the chain's preset.
func NewResolver(caller Caller, base *scale.Registry, opts ...ResolverOption) (*Resolver, error) {
	o := resolverOptions{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := lru.New[Key, *Runtime](max(o.cacheSize, 1))
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = scale.Base()
	}
	return &Resolver{caller: caller, base: base, store: o.store, cache: cache}, nil
}

// GenesisHash returns the hash of block 0. It is fetched once.
func (r *Resolver) GenesisHash(ctx context.Context) (string, error) {
	r.mu.Lock()
	genesis := r.genesis
	r.mu.Unlock()
	if genesis != "" {
		return genesis, nil
	}

	if err := r.caller.Call(ctx, "chain_getBlockHash", []any{0}, &genesis); err != nil {
		return "", fmt.Errorf("failed to fetch genesis hash: %w", err)
	}
	if genesis == "" {
		return "", errors.New("node returned no genesis hash")
	}

	r.mu.Lock()
	r.genesis = genesis
	r.mu.Unlock()
	return genesis, nil
}

// RuntimeVersion returns the runtime version at blockHash, or at the best
// block when blockHash is empty.
func (r *Resolver) RuntimeVersion(ctx context.Context, blockHash string) (RuntimeVersion, error) {
	var version RuntimeVersion
	if err := r.caller.Call(ctx, "state_getRuntimeVersion", blockParams(blockHash), &version); err != nil {
		return RuntimeVersion{}, fmt.Errorf("failed to fetch runtime version: %w", err)
	}
	return version, nil
}

// Resolve returns the runtime active at blockHash, or at the best block
// when blockHash is empty.
func (r *Resolver) Resolve(ctx context.Context, blockHash string) (*Runtime, error) {
	genesis, err := r.GenesisHash(ctx)
	if err != nil {
		return nil, err
	}
	version, err := r.RuntimeVersion(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	return r.ForVersion(ctx, genesis, version, blockHash)
}

// ForVersion returns the runtime of a known version. blockHash is the
// block metadata is fetched at on a cache miss; any block of that runtime
// version works.
func (r *Resolver) ForVersion(ctx context.Context, genesis string, version RuntimeVersion, blockHash string) (*Runtime, error) {
	key := Key{Genesis: genesis, SpecVersion: version.SpecVersion}
	lg := log.FromContext(ctx).WithKV("runtime", key.String())

	if rt, ok := r.cache.Get(key); ok {
		return rt, nil
	}

	res, err, shared := r.group.Do(key.String(), func() (any, error) {
		if rt, ok := r.cache.Get(key); ok {
			return rt, nil
		}

		var rt *Runtime
		if raw, ok := r.loadStored(ctx, key); ok {
			var err error
			if rt, err = Decode(raw, r.base); err != nil {
				lg.Warn("stored metadata does not decode, fetching it again", "error", err)
				rt = nil
			}
		}
		if rt == nil {
			raw, err := r.fetch(ctx, blockHash)
			if err != nil {
				return nil, err
			}
			if rt, err = Decode(raw, r.base); err != nil {
				lg.Error("failed to decode metadata", "error", err)
				return nil, err
			}
			r.save(ctx, key, raw)
		}
		rt.Version = version
		rt.GenesisHash = genesis

		r.cache.Add(key, rt)
		lg.Info("runtime metadata loaded", "specName", version.SpecName, "metadataVersion", rt.MetadataVersion, "pallets", len(rt.Pallets))
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		lg.Debug("shared metadata fetch")
	}
	return res.(*Runtime), nil
}

// loadStored reads metadata from the store, if there is one.
func (r *Resolver) loadStored(ctx context.Context, key Key) ([]byte, bool) {
	if r.store == nil {
		return nil, false
	}
	raw, err := r.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotStored) {
			log.FromContext(ctx).Warn("metadata store unavailable", "error", err)
		}
		return nil, false
	}
	return raw, true
}

// fetch downloads metadata from the node.
func (r *Resolver) fetch(ctx context.Context, blockHash string) ([]byte, error) {
	var encoded string
	if err := r.caller.Call(ctx, "state_getMetadata", blockParams(blockHash), &encoded); err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
	}
	return raw, nil
}

// save persists metadata that decoded. A failure only costs a download
// on the next start.
func (r *Resolver) save(ctx context.Context, key Key, raw []byte) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, key, raw); err != nil {
		log.FromContext(ctx).Warn("failed to persist metadata", "error", err)
	}
}

// Invalidate drops every cached runtime and the genesis hash. The store
// is left untouched.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
	r.mu.Lock()
	r.genesis = ""
	r.mu.Unlock()
}

// Cached returns the in-memory runtime for key, if any.
func (r *Resolver) Cached(key Key) (*Runtime, bool) {
	return r.cache.Peek(key)
}

func blockParams(blockHash string) []any {
	if blockHash == "" {
		return []any{}
	}
	return []any{blockHash}
}
