package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Claims grants at most one holder per key until released or expired.
type Claims interface {
	// Claim returns ErrClaimHeld while another holder owns key.
	Claim(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryClaims is a process-local Claims.
type MemoryClaims struct {
	mu    sync.Mutex
	held  map[string]claim
	nowFn func() time.Time
}

type claim struct {
	token   string
	expires time.Time
}

// NewMemoryClaims returns an empty in-process claim set.
func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{held: make(map[string]claim), nowFn: time.Now}
}

func (m *MemoryClaims) Claim(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if c, ok := m.held[key]; ok && now.Before(c.expires) {
		return nil, ErrClaimHeld
	}
	token := uuid.NewString()
	m.held[key] = claim{token: token, expires: now.Add(ttl)}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.held[key]; ok && c.token == token {
			delete(m.held, key)
		}
	}, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaims shares claims across instances with SET NX PX.
type RedisClaims struct {
	client redis.Cmdable
	prefix string
}

// NewRedisClaims stores claims as keys under prefix with SET NX PX.
func NewRedisClaims(client redis.Cmdable, prefix string) *RedisClaims {
	if prefix == "" {
		prefix = "dispatch:claim:"
	}
	return &RedisClaims{client: client, prefix: prefix}
}

func (r *RedisClaims) Claim(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	fullKey := r.prefix + key

	ok, err := r.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrClaimHeld
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{fullKey}, token).Err()
	}, nil
}
