// Package pubsub abstracts the publish/subscribe channel plus TTL'd
// key/value store the coordination layer runs on. Production uses Redis;
// tests use the in-memory broker.
package pubsub

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Subscription.Next when no message arrives
// within the given wait. Callers use it to drive heartbeats, not to abort.
var ErrTimeout = errors.New("pubsub: no message within timeout")

// Subscription is one consumer of a channel. Close is idempotent.
type Subscription interface {
	// Next blocks up to timeout for the next message on the channel.
	Next(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Broker is the pub/sub transport plus the expiring key/value store used
// for cross-process presence and locking.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// SetIfAbsent stores key only when unset; reports whether it won.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	RenewTTL(ctx context.Context, key string, ttl time.Duration) error
	// Exists counts how many of the given keys are currently set.
	Exists(ctx context.Context, keys ...string) (int, error)
	Delete(ctx context.Context, key string) error
}
