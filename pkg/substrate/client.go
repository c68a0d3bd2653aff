package substrate

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/config"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	rpcOpts  []rpc.Option
	store    metadata.Store
	registry *scale.Registry
}

// WithRPCOptions passes options to the transport, e.g. rpc.WithMetrics.
func WithRPCOptions(opts ...rpc.Option) Option {
	return func(o *options) { o.rpcOpts = append(o.rpcOpts, opts...) }
}

// WithMetadataStore persists metadata in s instead of the store the
// configuration describes.
func WithMetadataStore(s metadata.Store) Option {
	return func(o *options) { o.store = s }
}

// WithTypeRegistry uses reg as the base registry instead of the
// configured preset.
func WithTypeRegistry(reg *scale.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// Client is a connection to one node together with the runtime metadata
// needed to talk to it. It is safe for concurrent use.
type Client struct {
	cfg      config.Config
	rpc      *rpc.Client
	resolver *metadata.Resolver
	db       *gorm.DB
	lg       log.Logger
}

var _ rpc.Caller = (*Client)(nil)

// Connect opens a session with the node cfg names and resolves the
// runtime at the best block. A node whose metadata cannot be decoded is
// rejected with metadata.ErrMetadataDecode.
func Connect(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{cfg: cfg, lg: log.FromContext(ctx).WithName("substrate")}
	ctx = log.SetContextLogger(ctx, c.lg)

	base := o.registry
	if base == nil {
		var err error
		if base, err = scale.LoadPreset(cfg.Preset); err != nil {
			return nil, fmt.Errorf("failed to load type registry preset %q: %w", cfg.Preset, err)
		}
	}

	store := o.store
	if store == nil {
		db, err := metadata.ConnectToDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata store: %w", err)
		}
		if db != nil {
			c.db = db
			gs, err := metadata.NewGormStore(db)
			if err != nil {
				c.closeDB()
				return nil, fmt.Errorf("failed to prepare metadata store: %w", err)
			}
			store = gs
		}
	}

	transport, err := rpc.Connect(ctx, cfg.URL, cfg.RPC.Transport(), o.rpcOpts...)
	if err != nil {
		c.closeDB()
		return nil, err
	}
	c.rpc = transport

	resolverOpts := []metadata.ResolverOption{metadata.WithCacheSize(cfg.MetadataCacheSize)}
	if store != nil {
		resolverOpts = append(resolverOpts, metadata.WithStore(store))
	}
	if c.resolver, err = metadata.NewResolver(transport, base, resolverOpts...); err != nil {
		c.Close()
		return nil, err
	}

	// A new connection may lead to a node with another runtime.
	transport.OnReconnect(func() {
		c.resolver.Invalidate()
		c.lg.Info("runtime cache invalidated after reconnect")
	})

	rt, err := c.Runtime(ctx, "")
	if err != nil {
		c.Close()
		return nil, err
	}
	c.lg.Info("session ready", "url", cfg.URL, "specName", rt.Version.SpecName, "specVersion", rt.Version.SpecVersion)
	return c, nil
}

// NewBittensor connects to the public Bittensor endpoint with the
// bittensor type registry preset.
func NewBittensor(ctx context.Context, opts ...Option) (*Client, error) {
	return Connect(ctx, config.Default(), opts...)
}

// Close ends the session and releases the metadata store.
func (c *Client) Close() error {
	var err error
	if c.rpc != nil {
		err = c.rpc.Close()
	}
	return errors.Join(err, c.closeDB())
}

func (c *Client) closeDB() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transport returns the underlying JSON-RPC client.
func (c *Client) Transport() *rpc.Client { return c.rpc }

// Call issues a raw JSON-RPC call.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	return c.rpc.Call(c.logContext(ctx), method, params, result)
}

// SS58Format returns the address format addresses are encoded with.
func (c *Client) SS58Format() uint16 { return c.cfg.SS58Format }

// Address encodes id in the client's address format.
func (c *Client) Address(id sign.AccountID) string {
	return id.SS58(c.cfg.SS58Format)
}

// Runtime returns the runtime active at blockHash, or at the best block
// when blockHash is empty.
func (c *Client) Runtime(ctx context.Context, blockHash string) (*metadata.Runtime, error) {
	return c.resolver.Resolve(c.logContext(ctx), blockHash)
}

// RuntimeVersion returns the runtime version at blockHash, or at the best
// block when blockHash is empty.
func (c *Client) RuntimeVersion(ctx context.Context, blockHash string) (metadata.RuntimeVersion, error) {
	return c.resolver.RuntimeVersion(c.logContext(ctx), blockHash)
}

func (c *Client) logContext(ctx context.Context) context.Context {
	return log.SetContextLogger(ctx, c.lg)
}
