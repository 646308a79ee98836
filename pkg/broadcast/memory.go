package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster drops slow subscribers instead of blocking Broadcast.
// All methods are safe for concurrent use.
type MemoryBroadcaster[T any] struct {
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewMemoryBroadcaster creates a broadcaster whose subscribers buffer
// bufferSize messages (minimum 1).
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a subscriber that is removed when ctx is done.
// On a closed broadcaster it returns an already-closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := newSubscriber[T](b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			select {
			case <-ctx.Done():
			case <-sub.closedSignal():
			}
			b.unsubscribe(sub)
		}()
	}
	return sub
}

// Broadcast delivers msg to every subscriber; full subscribers are dropped.
func (b *MemoryBroadcaster[T]) Broadcast(_ context.Context, msg Message[T]) error {
	b.mu.RLock()
	var dropped []*subscriber[T]
	if !b.closed {
		for sub := range b.subscribers {
			if !sub.send(msg) {
				dropped = append(dropped, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range dropped {
		b.unsubscribe(sub)
	}
	return nil
}

// Len returns the number of active subscribers.
func (b *MemoryBroadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber. It is idempotent.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
	_ = sub.Close()
}
