package pubsub

import (
	"context"
	"sync"
	"time"
)

// MemoryBroker is a process-local Broker used in tests and single-node
// development runs.
type MemoryBroker struct {
	mu       sync.Mutex
	channels map[string]map[*memorySubscription]struct{}
	keys     map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		channels: make(map[string]map[*memorySubscription]struct{}),
		keys:     make(map[string]memoryEntry),
	}
}

func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.channels[channel] {
		select {
		case sub.ch <- append([]byte(nil), payload...):
		default:
			// Slow consumer: drop. Streams re-read the latest state on the
			// next message anyway.
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		broker:  b,
		channel: channel,
		ch:      make(chan []byte, 64),
	}
	b.mu.Lock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*memorySubscription]struct{})
	}
	b.channels[channel][sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	broker  *MemoryBroker
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *memorySubscription) Next(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-s.ch:
		return payload, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.channels[s.channel], s)
		if len(s.broker.channels[s.channel]) == 0 {
			delete(s.broker.channels, s.channel)
		}
		s.broker.mu.Unlock()
	})
	return nil
}

// expired must be called with b.mu held.
func (b *MemoryBroker) expired(key string) bool {
	entry, ok := b.keys[key]
	if !ok {
		return true
	}
	if time.Now().After(entry.expiresAt) {
		delete(b.keys, key)
		return true
	}
	return false
}

func (b *MemoryBroker) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.expired(key) {
		return false, nil
	}
	b.keys[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (b *MemoryBroker) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (b *MemoryBroker) RenewTTL(_ context.Context, key string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.expired(key) {
		return nil
	}
	entry := b.keys[key]
	entry.expiresAt = time.Now().Add(ttl)
	b.keys[key] = entry
	return nil
}

func (b *MemoryBroker) Exists(_ context.Context, keys ...string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, key := range keys {
		if !b.expired(key) {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBroker) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.keys, key)
	return nil
}
