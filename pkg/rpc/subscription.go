package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Subscription receives the notifications of one node subscription, such
// as chain_subscribeNewHeads. Notifications queue until Next takes them;
// once the subscription ends, queued notifications are still delivered
// before Next returns the error that ended it.
type Subscription struct {
	c                 *Client
	id                string
	rawID             json.RawMessage
	method            string
	unsubscribeMethod string

	mu     sync.Mutex
	queue  []json.RawMessage
	err    error
	signal chan struct{}
}

// Subscribe calls method, whose result is a subscription id, and returns
// the subscription it opened. unsubscribeMethod is called by Unsubscribe;
// leave it empty when the node offers none.
func (c *Client) Subscribe(ctx context.Context, method, unsubscribeMethod string, params []any) (*Subscription, error) {
	var rawID json.RawMessage
	done, err := c.call(ctx, method, params, &rawID)
	if err != nil {
		return nil, err
	}

	key := subscriptionKey(rawID)
	sub := &Subscription{
		c:                 c,
		id:                key,
		rawID:             rawID,
		method:            method,
		unsubscribeMethod: unsubscribeMethod,
		signal:            make(chan struct{}, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.connDone != done || c.conn == nil {
		// The node forgot the subscription along with the connection.
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConnectionLost, method)
	}
	c.subs[key] = sub
	c.ended.Remove(key)
	sub.queue = append(sub.queue, c.early[key]...)
	delete(c.early, key)
	c.mu.Unlock()

	c.metrics.ActiveSubscriptions.Inc()
	c.lg.Debug("subscribed", "method", method, "subscription", key)
	return sub, nil
}

// ID returns the subscription id assigned by the node.
func (s *Subscription) ID() string { return s.id }

// Next blocks until a notification arrives and decodes it into result,
// which may be nil to discard it. It returns ErrUnsubscribed after
// Unsubscribe, ErrConnectionLost or ErrClosed when the connection ends.
func (s *Subscription) Next(ctx context.Context, result any) error {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			raw := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			more := len(s.queue) > 0
			s.mu.Unlock()
			if more {
				s.wake()
			}

			if result == nil {
				return nil
			}
			if err := json.Unmarshal(raw, result); err != nil {
				return fmt.Errorf("%w of %s notification: %w", ErrInvalidResult, s.method, err)
			}
			return nil
		}
		err := s.err
		s.mu.Unlock()

		if err != nil {
			// Let other waiters see the error too.
			s.wake()
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.signal:
		}
	}
}

// Err returns the error that ended the subscription, or nil while it is
// active.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe ends the subscription and asks the node to stop sending
// notifications. The local side ends even when that request fails.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	if !s.fail(ErrUnsubscribed) {
		return nil
	}

	c := s.c
	c.mu.Lock()
	registered := c.subs[s.id] == s
	if registered {
		delete(c.subs, s.id)
		c.ended.Add(s.id, struct{}{})
	}
	delete(c.early, s.id)
	connected := c.conn != nil && !c.closed
	c.mu.Unlock()

	if !registered {
		return nil
	}
	c.metrics.ActiveSubscriptions.Dec()

	if !connected || s.unsubscribeMethod == "" {
		return nil
	}
	if err := c.Call(ctx, s.unsubscribeMethod, []any{s.rawID}, nil); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", s.id, err)
	}
	return nil
}

func (s *Subscription) push(raw json.RawMessage) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, raw)
	s.mu.Unlock()
	s.wake()
}

// fail ends the subscription with err. It reports false when it had
// already ended.
func (s *Subscription) fail(err error) bool {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return false
	}
	s.err = err
	s.mu.Unlock()
	s.wake()
	return true
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
