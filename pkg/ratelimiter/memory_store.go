package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type bucketState struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// MemoryStore keeps buckets in process memory. Stale buckets are swept
// periodically until Close.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time

	cleanupInterval time.Duration
	staleAfter      time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the sweep interval; 0 disables sweeping.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) { ms.cleanupInterval = interval }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) { ms.now = now }
}

// NewMemoryStore returns an in-process store that evicts stale buckets in the background.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		buckets:         make(map[string]*bucketState),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		staleAfter:      time.Hour,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}
	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}
	return ms
}

func (ms *MemoryStore) ConsumeTokens(_ context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	b, ok := ms.buckets[key]
	if !ok {
		b = &bucketState{tokens: config.Capacity, lastRefill: now}
		ms.buckets[key] = b
	}
	b.lastAccess = now
	b.tokens, b.lastRefill = refill(b.tokens, b.lastRefill, now, config)

	resetAt := b.lastRefill.Add(config.RefillInterval)
	if b.tokens < tokens {
		return b.tokens - tokens, resetAt, nil
	}
	b.tokens -= tokens
	return b.tokens, resetAt, nil
}

func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.buckets, key)
	return nil
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ms.removeStale()
		case <-ms.stop:
			return
		}
	}
}

func (ms *MemoryStore) removeStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	now := ms.now()
	for key, b := range ms.buckets {
		if now.Sub(b.lastAccess) > ms.staleAfter {
			delete(ms.buckets, key)
		}
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.stopOnce.Do(func() { close(ms.stop) })
}
