package ratelimiter

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("ratelimiter: invalid configuration")
	ErrInvalidTokenCount = errors.New("ratelimiter: invalid token count")
	ErrStoreUnavailable  = errors.New("ratelimiter: store unavailable")
)

func errInvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
