// Package rpctest provides an in-process node that speaks the JSON-RPC
// websocket protocol, for testing code built on package rpc.
package rpctest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc"
)

// ErrNoReply makes a handler's request go unanswered.
var ErrNoReply = errors.New("rpctest: no reply")

// HandlerFunc answers one request. Returning an *rpc.Error sends it as
// is; other errors are sent with code -32000.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Request is a request received by the node.
type Request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`

	conn *conn
}

// Param decodes the i-th parameter into v.
func (r *Request) Param(i int, v any) error {
	if i >= len(r.Params) {
		return fmt.Errorf("missing parameter %d of %s", i, r.Method)
	}
	return json.Unmarshal(r.Params[i], v)
}

// Notify sends a subscription notification on the connection the request
// arrived on. Called from a handler it reaches the client before the
// handler's response.
func (r *Request) Notify(method string, subscription, result any) error {
	return r.conn.write(notification(method, subscription, result))
}

// Node is a mock node serving registered handlers over websocket.
// Requests are handled concurrently, so responses may arrive in any order.
type Node struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	handlers    map[string]HandlerFunc
	counts      map[string]int
	conns       map[*conn]struct{}
	connections int
}

// NewNode starts a node that is closed when the test ends.
func NewNode(t testing.TB) *Node {
	t.Helper()

	n := &Node{
		handlers: make(map[string]HandlerFunc),
		counts:   make(map[string]int),
		conns:    make(map[*conn]struct{}),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(n.Close)
	return n
}

// URL returns the websocket endpoint of the node.
func (n *Node) URL() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

// Handle registers h for method, replacing any previous handler.
func (n *Node) Handle(method string, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// HandleResult makes method always answer with result.
func (n *Node) HandleResult(method string, result any) {
	n.Handle(method, func(context.Context, *Request) (any, error) {
		return result, nil
	})
}

// Count returns how many requests for method the node received.
func (n *Node) Count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[method]
}

// Connections returns how many connections the node accepted so far.
func (n *Node) Connections() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connections
}

// Notify sends a subscription notification on every open connection.
func (n *Node) Notify(method string, subscription, result any) {
	msg := notification(method, subscription, result)
	for _, c := range n.openConns() {
		_ = c.write(msg)
	}
}

// DropConnections closes every open connection without a close frame.
func (n *Node) DropConnections() {
	for _, c := range n.openConns() {
		c.ws.Close()
	}
}

// Close drops all connections and stops the node.
func (n *Node) Close() {
	n.DropConnections()
	n.server.Close()
}

func (n *Node) openConns() []*conn {
	n.mu.Lock()
	defer n.mu.Unlock()

	conns := make([]*conn, 0, len(n.conns))
	for c := range n.conns {
		conns = append(conns, c)
	}
	return conns
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &conn{ws: ws}
	n.mu.Lock()
	n.conns[c] = struct{}{}
	n.connections++
	n.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		ws.Close()

		n.mu.Lock()
		delete(n.conns, c)
		n.mu.Unlock()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		req := &Request{conn: c}
		if err := json.Unmarshal(data, req); err != nil {
			_ = c.write(map[string]any{
				"jsonrpc": "2.0",
				"id":      nil,
				"error":   &rpc.Error{Code: -32700, Message: "Parse error"},
			})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			n.handle(ctx, req)
		}()
	}
}

func (n *Node) handle(ctx context.Context, req *Request) {
	n.mu.Lock()
	h, ok := n.handlers[req.Method]
	n.counts[req.Method]++
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &rpc.Error{Code: -32601, Message: "Method not found"}
		_ = req.conn.write(resp)
		return
	}

	result, err := h(ctx, req)
	var rpcErr *rpc.Error
	switch {
	case errors.Is(err, ErrNoReply):
		return
	case errors.As(err, &rpcErr):
		resp["error"] = rpcErr
	case err != nil:
		resp["error"] = &rpc.Error{Code: -32000, Message: err.Error()}
	default:
		resp["result"] = result
	}
	_ = req.conn.write(resp)
}

func notification(method string, subscription, result any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params": map[string]any{
			"subscription": subscription,
			"result":       result,
		},
	}
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}
