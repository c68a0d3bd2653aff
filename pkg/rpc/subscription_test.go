package rpc_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc/rpctest"
)

type head struct {
	Number string `json:"number"`
}

func TestSubscription(t *testing.T) {
	t.Parallel()

	node := rpctest.NewNode(t)
	node.Handle("chain_subscribeNewHeads", func(_ context.Context, req *rpctest.Request) (any, error) {
		// Sent before the subscription id reaches the client.
		if err := req.Notify("chain_newHead", "sub-1", head{Number: "0x1"}); err != nil {
			return nil, err
		}
		return "sub-1", nil
	})
	node.Handle("chain_unsubscribeNewHeads", func(_ context.Context, req *rpctest.Request) (any, error) {
		var id string
		if err := req.Param(0, &id); err != nil {
			return nil, err
		}
		return id == "sub-1", nil
	})

	metrics := rpc.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := connect(t, node, testConfig(), rpc.WithMetrics(metrics))
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	sub, err := client.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", nil)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSubscriptions))

	var h head
	require.NoError(t, sub.Next(ctx, &h))
	assert.Equal(t, "0x1", h.Number)

	node.Notify("chain_newHead", "sub-1", head{Number: "0x2"})
	node.Notify("chain_newHead", "other", head{Number: "0xff"})
	node.Notify("chain_newHead", "sub-1", head{Number: "0x3"})

	for _, want := range []string{"0x2", "0x3"} {
		require.NoError(t, sub.Next(ctx, &h))
		assert.Equal(t, want, h.Number)
	}

	require.NoError(t, sub.Unsubscribe(ctx))
	assert.Equal(t, 1, node.Count("chain_unsubscribeNewHeads"))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveSubscriptions))
	assert.ErrorIs(t, sub.Err(), rpc.ErrUnsubscribed)
	assert.ErrorIs(t, sub.Next(ctx, &h), rpc.ErrUnsubscribed)

	// A second unsubscribe does nothing.
	require.NoError(t, sub.Unsubscribe(ctx))
	assert.Equal(t, 1, node.Count("chain_unsubscribeNewHeads"))
}

func TestSubscription_NumericID(t *testing.T) {
	t.Parallel()

	node := rpctest.NewNode(t)
	node.HandleResult("state_subscribeStorage", 42)
	client := connect(t, node, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	sub, err := client.Subscribe(ctx, "state_subscribeStorage", "", []any{[]string{"0x26aa"}})
	require.NoError(t, err)
	assert.Equal(t, "42", sub.ID())

	node.Notify("state_storage", "42", map[string]any{"block": "0xab"})

	var change struct {
		Block string `json:"block"`
	}
	require.NoError(t, sub.Next(ctx, &change))
	assert.Equal(t, "0xab", change.Block)
}

func TestSubscription_NextContext(t *testing.T) {
	t.Parallel()

	node := rpctest.NewNode(t)
	node.HandleResult("chain_subscribeFinalizedHeads", "fin")
	client := connect(t, node, testConfig())

	sub, err := client.Subscribe(context.Background(), "chain_subscribeFinalizedHeads", "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sub.Next(ctx, nil), context.DeadlineExceeded)
	assert.NoError(t, sub.Err())
}

func TestSubscription_ConnectionLost(t *testing.T) {
	t.Parallel()

	node := rpctest.NewNode(t)
	node.Handle("chain_subscribeNewHeads", func(_ context.Context, req *rpctest.Request) (any, error) {
		for _, n := range []string{"0x1", "0x2"} {
			if err := req.Notify("chain_newHead", "sub", head{Number: n}); err != nil {
				return nil, err
			}
		}
		return "sub", nil
	})

	metrics := rpc.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := connect(t, node, testConfig(), rpc.WithMetrics(metrics))
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	sub, err := client.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", nil)
	require.NoError(t, err)

	node.DropConnections()
	require.Eventually(t, func() bool { return sub.Err() != nil }, testTimeout, testTick)
	assert.ErrorIs(t, sub.Err(), rpc.ErrConnectionLost)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveSubscriptions))

	// Queued notifications are delivered before the error.
	var h head
	for _, want := range []string{"0x1", "0x2"} {
		require.NoError(t, sub.Next(ctx, &h))
		assert.Equal(t, want, h.Number)
	}
	assert.ErrorIs(t, sub.Next(ctx, &h), rpc.ErrConnectionLost)

	// Nothing to tell the node any more.
	require.NoError(t, sub.Unsubscribe(ctx))
	assert.Zero(t, node.Count("chain_unsubscribeNewHeads"))
}

func TestSubscription_EarlyBufferBound(t *testing.T) {
	t.Parallel()

	node := rpctest.NewNode(t)
	node.Handle("chain_subscribeNewHeads", func(_ context.Context, req *rpctest.Request) (any, error) {
		for _, n := range []string{"0x1", "0x2", "0x3"} {
			if err := req.Notify("chain_newHead", "sub", head{Number: n}); err != nil {
				return nil, err
			}
		}
		return "sub", nil
	})

	cfg := testConfig()
	cfg.SubscriptionBuffer = 2
	metrics := rpc.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := connect(t, node, cfg, rpc.WithMetrics(metrics))
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	sub, err := client.Subscribe(ctx, "chain_subscribeNewHeads", "", nil)
	require.NoError(t, err)

	var h head
	for _, want := range []string{"0x1", "0x2"} {
		require.NoError(t, sub.Next(ctx, &h))
		assert.Equal(t, want, h.Number)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DroppedFrames))
}

func TestSubscription_LateNotificationsDropped(t *testing.T) {
	t.Parallel()

	const cycles, late = 20, 3

	var mu sync.Mutex
	next := 0
	node := rpctest.NewNode(t)
	node.Handle("author_submitAndWatchExtrinsic", func(context.Context, *rpctest.Request) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("watch-%d", next), nil
	})
	node.HandleResult("author_unwatchExtrinsic", true)

	metrics := rpc.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := connect(t, node, testConfig(), rpc.WithMetrics(metrics))
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	for range cycles {
		sub, err := client.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", []any{"0x00"})
		require.NoError(t, err)
		require.NoError(t, sub.Unsubscribe(ctx))

		// The node keeps talking about the watch after it ended.
		for range late {
			node.Notify("author_extrinsicUpdate", sub.ID(), "ready")
		}
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.DroppedFrames) == cycles*late
	}, testTimeout, testTick)
	ids, notifications := client.EarlyNotifications()
	assert.Zero(t, ids)
	assert.Zero(t, notifications)
}

func TestSubscription_EarlySubscriptionsBound(t *testing.T) {
	t.Parallel()

	node := rpctest.NewNode(t)
	node.HandleResult("system_health", true)
	metrics := rpc.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := connect(t, node, testConfig(), rpc.WithMetrics(metrics))

	const unknown = 100
	for i := range unknown {
		node.Notify("chain_newHead", fmt.Sprintf("stray-%d", i), head{Number: "0x1"})
	}
	// A round trip after the notifications means the reader has seen them.
	require.NoError(t, client.Call(context.Background(), "system_health", nil, nil))

	ids, notifications := client.EarlyNotifications()
	assert.Equal(t, 64, ids)
	assert.Equal(t, 64, notifications)
	assert.Equal(t, float64(unknown-64), testutil.ToFloat64(metrics.DroppedFrames))
}
