package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript runs the refill-and-take step atomically. Times are in ms.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local cost = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

local intervals = math.floor((now - last) / interval)
local cap_intervals = math.floor(capacity / rate) + 1
if intervals > cap_intervals then intervals = cap_intervals end
if intervals > 0 then
  tokens = math.min(tokens + intervals * rate, capacity)
  last = now
end

local remaining = tokens - cost
if remaining >= 0 then tokens = remaining end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill', last)
redis.call('PEXPIRE', KEYS[1], cap_intervals * interval + interval)
return {remaining, last + interval}
`)

// RedisStore shares buckets across instances.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisStore keeps buckets in Redis hashes under prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.prefix + key},
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
		s.now().UnixMilli(),
		tokens,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
