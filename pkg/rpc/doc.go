// Package rpc implements the JSON-RPC 2.0 transport used to talk to a
// Substrate node over a websocket.
//
// # Calls
//
// A Client owns one connection. Any number of goroutines may issue calls
// concurrently; each request gets a unique id and its response is routed
// back by that id, whatever order the node answers in:
//
//	client, err := rpc.Connect(ctx, "wss://node.example", rpc.DefaultConfig)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	var hash string
//	err = client.Call(ctx, "chain_getBlockHash", []any{0}, &hash)
//
// Errors returned by the node are *Error values. A call without a
// response fails with ErrTimeout once its context deadline, or the
// configured request timeout, passes.
//
// # Subscriptions
//
// Subscribe opens a node subscription and returns a Subscription whose
// Next method yields notifications in arrival order. Notifications that
// arrive before the subscribe response are buffered and handed over:
//
//	sub, err := client.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", nil)
//	for {
//	    var head Header
//	    if err := sub.Next(ctx, &head); err != nil {
//	        break
//	    }
//	}
//
// # Connection loss
//
// When the connection drops, pending calls and subscriptions fail with
// ErrConnectionLost. With reconnection enabled the client redials with
// exponential backoff and runs the OnReconnect hooks; subscriptions are
// not replayed. When the backoff gives up, the closure handler receives
// ErrReconnectFailed and every later call fails with ErrClosed.
//
// # Observability
//
// Every call opens an OpenTelemetry span and is counted in Metrics, which
// can be registered on any Prometheus registerer.
package rpc
