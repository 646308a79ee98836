// Package ratelimiter implements token bucket rate limiting over a pluggable
// store (in-memory or Redis) with an HTTP middleware.
package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is satisfied by *Bucket.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
}

// Store persists bucket state. ConsumeTokens takes tokens only when enough
// are available; remaining is negative when the request is denied.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Bucket is a token-bucket limiter over a Store.
type Bucket struct {
	store  Store
	config Config
	prefix string
}

type BucketOption func(*Bucket)

// WithKeyPrefix namespaces keys so several buckets can share a store.
func WithKeyPrefix(prefix string) BucketOption {
	return func(b *Bucket) { b.prefix = prefix }
}

// NewBucket validates config and returns a limiter.
func NewBucket(store Store, config Config, opts ...BucketOption) (*Bucket, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	b := &Bucket{store: store, config: config}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return b.AllowN(ctx, key, 1)
}

func (b *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	return b.consume(ctx, key, n)
}

// Status reports the bucket without consuming.
func (b *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	return b.consume(ctx, key, 0)
}

func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, b.prefix+key)
}

func (b *Bucket) consume(ctx context.Context, key string, n int) (*Result, error) {
	remaining, resetAt, err := b.store.ConsumeTokens(ctx, b.prefix+key, n, b.config)
	if err != nil {
		return nil, err
	}
	return &Result{Limit: b.config.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}
