package ratelimiter

import "time"

// Result is the outcome of a rate limit check.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative when denied
	ResetAt   time.Time // next refill
}

func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is zero for allowed requests.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Config is a token bucket: Capacity tokens, refilled by RefillRate every RefillInterval.
type Config struct {
	Capacity       int
	RefillRate     int
	RefillInterval time.Duration
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return errInvalidConfig("capacity must be positive, got %d", c.Capacity)
	case c.RefillRate <= 0:
		return errInvalidConfig("refill rate must be positive, got %d", c.RefillRate)
	case c.RefillInterval <= 0:
		return errInvalidConfig("refill interval must be positive, got %v", c.RefillInterval)
	}
	return nil
}

// refill advances a bucket to now and returns the new token count and refill time.
func refill(tokens int, lastRefill, now time.Time, c Config) (int, time.Time) {
	// capped so huge idle gaps cannot overflow
	maxIntervals := int64(c.Capacity/c.RefillRate + 1)
	intervals := int(min(int64(now.Sub(lastRefill)/c.RefillInterval), maxIntervals))
	if intervals <= 0 {
		return tokens, lastRefill
	}
	return min(tokens+intervals*c.RefillRate, c.Capacity), now
}
