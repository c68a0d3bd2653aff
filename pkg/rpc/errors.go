package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is returned when the websocket handshake fails.
	ErrConnection = errors.New("error dialing websocket server")
	// ErrConnectionLost fails calls and subscriptions that were in flight
	// when the connection dropped.
	ErrConnectionLost = errors.New("connection lost")
	// ErrTimeout is returned when no response arrives within the request
	// timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrNotConnected is returned while the client is reconnecting.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned after Close or after reconnection gave up.
	ErrClosed = errors.New("client closed")
	// ErrReconnectFailed is reported to the closure handler when the
	// reconnect backoff is exhausted.
	ErrReconnectFailed = errors.New("reconnect failed")
	// ErrUnsubscribed is returned by Subscription.Next once the
	// subscription was cancelled and its queue drained.
	ErrUnsubscribed = errors.New("subscription cancelled")

	ErrMarshalingRequest = errors.New("error marshaling request")
	ErrInvalidResult     = errors.New("error decoding result")
)

// Error is the error object of a JSON-RPC response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
