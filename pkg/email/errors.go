package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("email: transport rejected the message")
	ErrInvalidConfig     = errors.New("email: invalid transport configuration")
	ErrInvalidParams     = errors.New("email: invalid message")
	// ErrNotConfigured means no transport is set up; callers report the
	// feature as unavailable instead of failing per message.
	ErrNotConfigured = errors.New("email: transport not configured")
)
