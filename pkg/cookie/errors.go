package cookie

import "errors"

var (
	ErrNoSecret         = errors.New("cookie: secret is empty")
	ErrSecretTooShort   = errors.New("cookie: secret too short")
	ErrInvalidSignature = errors.New("cookie: signature mismatch")
	ErrCookieNotFound   = errors.New("cookie: not found")
	ErrInvalidFormat    = errors.New("cookie: malformed signed value")
)
