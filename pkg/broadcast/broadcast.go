// Package broadcast fans typed messages out to context-scoped subscribers.
package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster. The receive channel is
// closed when the subscriber is closed, its context ends, or it was dropped
// for falling behind.
type Subscriber[T any] interface {
	Receive() <-chan Message[T]
	Close() error
}

// Broadcaster sends messages to every active subscriber without blocking on
// slow consumers.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context) Subscriber[T]
	Broadcast(ctx context.Context, msg Message[T]) error
	Close() error
}

type subscriber[T any] struct {
	ch     chan Message[T]
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{
		ch:   make(chan Message[T], bufferSize),
		done: make(chan struct{}),
	}
}

func (s *subscriber[T]) closedSignal() <-chan struct{} {
	return s.done
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		close(s.done)
		s.closed = true
	}
	return nil
}

// send reports false when the subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
