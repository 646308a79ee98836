package redis

import "errors"

var (
	ErrNotConfigured     = errors.New("redis: REDIS_URL is empty")
	ErrInvalidURL        = errors.New("redis: invalid REDIS_URL")
	ErrNotReady          = errors.New("redis: server did not answer before the connect timeout")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
