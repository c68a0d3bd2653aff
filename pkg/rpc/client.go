package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
)

const tracerName = "github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc"

const (
	// maxEarlySubscriptions caps the unknown subscription ids whose
	// notifications are held until their subscribe call returns.
	maxEarlySubscriptions = 64
	// endedSubscriptions is the number of unsubscribed ids remembered per
	// connection so their late notifications are dropped.
	endedSubscriptions = 1024
)

// Caller issues JSON-RPC calls. The metadata resolver and the client
// facade depend on this interface rather than on Client.
type Caller interface {
	// Call sends method with params and decodes the result into result,
	// which may be nil to discard it.
	Call(ctx context.Context, method string, params []any, result any) error
}

// Config contains the connection options of a Client
type Config struct {
	// HandshakeTimeout is the duration to wait for the WebSocket handshake to complete
	HandshakeTimeout time.Duration

	// RequestTimeout bounds calls whose context has no deadline. Zero
	// disables it.
	RequestTimeout time.Duration

	// PingInterval is how often to send ping control frames to keep the
	// connection alive. A connection that stays silent for three intervals
	// is considered dropped. Zero disables pings.
	PingInterval time.Duration

	// SubscriptionBuffer is the number of notifications kept for a
	// subscription id that has not been registered yet
	SubscriptionBuffer int

	Reconnect ReconnectConfig
}

// ReconnectConfig controls the exponential backoff used after the
// connection drops.
type ReconnectConfig struct {
	Enabled         bool
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime is the ceiling after which reconnection gives up.
	// Zero retries forever.
	MaxElapsedTime time.Duration
}

// DefaultConfig provides sensible defaults for node connections
var DefaultConfig = Config{
	HandshakeTimeout:   10 * time.Second,
	RequestTimeout:     30 * time.Second,
	PingInterval:       20 * time.Second,
	SubscriptionBuffer: 256,
	Reconnect: ReconnectConfig{
		Enabled:         true,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  5 * time.Minute,
	},
}

// Option configures a Client
type Option func(*Client)

// WithMetrics records transport metrics into m. Without it the client
// registers its metrics in a private registry.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider sets the provider of the spans opened around calls.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithClosureHandler registers fn to run once when the client stops: with
// nil after Close, or with the error that ended the session.
func WithClosureHandler(fn func(err error)) Option {
	return func(c *Client) { c.onClose = fn }
}

// Client is a JSON-RPC 2.0 client over a single websocket connection.
// It is safe for concurrent use: callers write directly under a write
// lock while a background reader routes responses by request id and
// notifications by subscription id.
type Client struct {
	cfg       Config
	url       string
	sessionID string
	metrics   *Metrics
	tracer    trace.Tracer
	lg        log.Logger
	onClose   func(err error)

	lifeCtx context.Context
	cancel  context.CancelFunc
	nextID  atomic.Uint64

	mu             sync.Mutex
	conn           *websocket.Conn
	connDone       chan struct{} // closed when conn is gone
	pending        map[uint64]chan *message
	subs           map[string]*Subscription
	early          map[string][]json.RawMessage
	ended          *lru.Cache[string, struct{}]
	closed         bool
	userClosed     bool
	reconnectHooks []func()

	writeMu   sync.Mutex
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Caller = (*Client)(nil)

// Connect dials url and starts the background reader. The connection
// outlives ctx, which only bounds the handshake; call Close to end it.
func Connect(ctx context.Context, url string, cfg Config, opts ...Option) (*Client, error) {
	lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Client{
		cfg:       cfg,
		url:       url,
		sessionID: uuid.NewString(),
		lifeCtx:   lifeCtx,
		cancel:    cancel,
		pending:   make(map[uint64]chan *message),
		subs:      make(map[string]*Subscription),
		early:     make(map[string][]json.RawMessage),
	}
	c.ended, _ = lru.New[string, struct{}](endedSubscriptions)
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetricsWithRegistry(prometheus.NewRegistry())
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.lg = log.FromContext(ctx).WithName("rpc").WithKV("session", c.sessionID)

	conn, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	c.start(conn)
	c.lg.Info("connected", "url", url)
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return conn, nil
}

// start makes conn the active connection. It reports false and closes
// conn when the client was closed in the meantime.
func (c *Client) start(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return false
	}
	done := make(chan struct{})
	c.conn = conn
	c.connDone = done
	c.wg.Add(2)
	c.mu.Unlock()

	if c.cfg.PingInterval > 0 {
		c.extendReadDeadline(conn)
		conn.SetPongHandler(func(string) error {
			c.extendReadDeadline(conn)
			return nil
		})
	}

	go c.readMessages(conn)
	go c.pingPeriodically(conn, done)
	return true
}

func (c *Client) extendReadDeadline(conn *websocket.Conn) {
	if c.cfg.PingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(3 * c.cfg.PingInterval))
	}
}

// readMessages reads frames until the connection fails and routes each
// one to its waiting caller or subscription.
func (c *Client) readMessages(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.extendReadDeadline(conn)
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.lg.Warn("malformed message", "message", string(data), "error", err)
		c.metrics.DroppedFrames.Inc()
		return
	}

	switch {
	case msg.ID != nil:
		c.mu.Lock()
		sink, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		c.mu.Unlock()

		if !ok {
			// The caller gave up on this request.
			c.lg.Debug("discarding response without pending call", "id", *msg.ID)
			c.metrics.DroppedFrames.Inc()
			return
		}
		sink <- &msg

	case msg.Params != nil:
		key := subscriptionKey(msg.Params.Subscription)
		c.mu.Lock()
		sub, ok := c.subs[key]
		if !ok {
			if c.ended.Contains(key) {
				c.mu.Unlock()
				c.lg.Debug("discarding notification of ended subscription", "subscription", key, "method", msg.Method)
				c.metrics.DroppedFrames.Inc()
				return
			}
			queued, known := c.early[key]
			buffered := len(queued) < c.cfg.SubscriptionBuffer &&
				(known || len(c.early) < maxEarlySubscriptions)
			if buffered {
				c.early[key] = append(queued, msg.Params.Result)
			}
			c.mu.Unlock()
			if !buffered {
				c.lg.Warn("dropping notification for unknown subscription", "subscription", key, "method", msg.Method)
				c.metrics.DroppedFrames.Inc()
			}
			return
		}
		c.mu.Unlock()
		sub.push(msg.Params.Result)

	default:
		c.lg.Warn("unexpected message", "message", string(data))
		c.metrics.DroppedFrames.Inc()
	}
}

// pingPeriodically sends ping control frames while conn is active
func (c *Client) pingPeriodically(conn *websocket.Conn, done <-chan struct{}) {
	defer c.wg.Done()
	if c.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// The read loop notices the broken connection.
				c.lg.Warn("error sending ping", "error", err)
				return
			}
		}
	}
}

// handleDrop tears down conn after a read failure: pending calls and
// subscriptions fail, then the client reconnects or shuts down.
func (c *Client) handleDrop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.connDone)
	c.pending = make(map[uint64]chan *message)
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.early = make(map[string][]json.RawMessage)
	c.ended.Purge()
	closed := c.closed
	reconnect := !closed && c.cfg.Reconnect.Enabled
	if reconnect {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	conn.Close()

	subErr := ErrConnectionLost
	if closed {
		subErr = ErrClosed
	}
	for _, sub := range subs {
		sub.fail(subErr)
		c.metrics.ActiveSubscriptions.Dec()
	}

	if closed {
		return
	}
	c.lg.Warn("connection lost", "error", cause, "subscriptions", len(subs))
	if reconnect {
		go c.reconnect()
		return
	}
	c.shutdown(fmt.Errorf("%w: %w", ErrConnectionLost, cause))
}

// reconnect redials with exponential backoff. Subscriptions are not
// restored; the hooks registered with OnReconnect run after success.
func (c *Client) reconnect() {
	defer c.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.Reconnect.InitialInterval
	b.MaxInterval = c.cfg.Reconnect.MaxInterval
	b.MaxElapsedTime = c.cfg.Reconnect.MaxElapsedTime

	attempts := 0
	op := func() error {
		attempts++
		c.metrics.ReconnectAttempts.Inc()

		conn, err := c.dial(c.lifeCtx)
		if err != nil {
			c.lg.Warn("reconnect attempt failed", "attempt", attempts, "error", err)
			return err
		}
		if !c.start(conn) {
			return backoff.Permanent(ErrClosed)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, c.lifeCtx)); err != nil {
		if errors.Is(err, ErrClosed) || c.isClosed() {
			return
		}
		c.lg.Error("giving up reconnecting", "attempts", attempts, "error", err)
		c.shutdown(fmt.Errorf("%w after %d attempts: %w", ErrReconnectFailed, attempts, err))
		return
	}

	c.metrics.Reconnects.Inc()
	c.lg.Info("reconnected", "attempts", attempts)

	c.mu.Lock()
	hooks := slices.Clone(c.reconnectHooks)
	c.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// shutdown stops the client after an unrecoverable failure.
func (c *Client) shutdown(err error) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose(err)
		}
	})
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsConnected reports whether a connection is currently established.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// SessionID identifies this client in logs.
func (c *Client) SessionID() string { return c.sessionID }

// URL returns the endpoint the client connects to.
func (c *Client) URL() string { return c.url }

// OnReconnect registers fn to run after every successful reconnection.
// Hooks run on the reconnect goroutine and must not call Close.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectHooks = append(c.reconnectHooks, fn)
}

// Close ends the session. Pending calls and subscriptions fail with
// ErrClosed and reconnection stops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.userClosed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.wg.Wait()

	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose(nil)
		}
	})
	c.lg.Info("connection closed")
	return err
}

// Call sends a request and waits for its response. The result field is
// decoded into result unless result is nil. Node errors are returned as
// *Error; a missing response yields ErrTimeout once the context or the
// configured request timeout expires.
//
// Example:
//
//	var head struct{ Number string `json:"number"` }
//	err := client.Call(ctx, "chain_getHeader", nil, &head)
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	_, err := c.call(ctx, method, params, result)
	return err
}

// call returns the done channel of the connection the call went over.
func (c *Client) call(ctx context.Context, method string, params []any, result any) (done <-chan struct{}, err error) {
	ctx, span := c.tracer.Start(ctx, "rpc "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
			attribute.String("rpc.session", c.sessionID),
		))
	defer span.End()
	ctx = log.SetContextLogger(ctx, c.lg)

	if _, ok := ctx.Deadline(); !ok && c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	c.metrics.InFlight.Inc()
	defer func() {
		c.metrics.InFlight.Dec()
		c.metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		c.metrics.Requests.WithLabelValues(method, outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.FromContext(ctx).Debug("call failed", "method", method, "error", err)
		}
	}()

	res, done, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return done, res.Error
	}
	if result == nil {
		return done, nil
	}

	raw := res.Result
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return done, fmt.Errorf("%w of %s: %w", ErrInvalidResult, method, err)
	}
	return done, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []any) (*message, <-chan struct{}, error) {
	id := c.nextID.Add(1)
	data, err := json.Marshal(NewRequest(id, method, params))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	// Buffered so the reader never blocks on a caller that already left.
	sink := make(chan *message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if c.conn == nil {
		c.mu.Unlock()
		return nil, nil, ErrNotConnected
	}
	conn, done := c.conn, c.connDone
	c.pending[id] = sink
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}

	select {
	case res := <-sink:
		return res, done, nil
	case <-done:
		select {
		case res := <-sink:
			return res, done, nil
		default:
		}
		c.mu.Lock()
		userClosed := c.userClosed
		c.mu.Unlock()
		if userClosed {
			return nil, nil, ErrClosed
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrConnectionLost, method)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: %s (id %d)", ErrTimeout, method, id)
		}
		return nil, nil, ctx.Err()
	}
}

func outcome(err error) string {
	var rpcErr *Error
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &rpcErr):
		return outcomeRPCError
	case errors.Is(err, ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrConnectionLost):
		return outcomeConnectionLost
	default:
		return outcomeError
	}
}
