package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TypeMagicLink is the only verification type the confirm endpoint accepts.
const TypeMagicLink = "magiclink"

// Identity is the authenticated principal behind a request.
type Identity struct {
	SessionID uuid.UUID `json:"session_id"`
	Email     string    `json:"email"`
	DeviceID  string    `json:"-"`
}

// Session is what the browser holds after sign-in or refresh.
type Session struct {
	Identity
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// EventKind names a session change.
type EventKind string

const (
	SignedIn       EventKind = "signed_in"
	SignedOut      EventKind = "signed_out"
	TokenRefreshed EventKind = "token_refreshed"
)

// Event is published on every session change. Seq grows strictly across
// all events of one provider. Identity is nil for SignedOut.
type Event struct {
	Seq      uint64
	Kind     EventKind
	DeviceID string
	Identity *Identity
}

// SessionRecord is the server-side row backing a session.
type SessionRecord struct {
	ID               uuid.UUID
	Email            string
	DeviceID         string
	RefreshTokenHash []byte
	CreatedAt        time.Time
	RefreshedAt      time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// Active reports whether the session is unrevoked and unexpired at now.
func (r SessionRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// Store persists sign-in tokens and sessions.
type Store interface {
	// ConsumeSignInToken records a magic-link token id; ErrTokenUsed when
	// it was recorded before.
	ConsumeSignInToken(ctx context.Context, id uuid.UUID, email string, expiresAt time.Time) error
	CreateSession(ctx context.Context, rec SessionRecord) error
	GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error)
	GetSessionByRefreshHash(ctx context.Context, hash []byte) (*SessionRecord, error)
	LatestActiveSession(ctx context.Context, deviceID string, now time.Time) (*SessionRecord, error)
	RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash []byte, expiresAt time.Time) error
	RevokeSession(ctx context.Context, id uuid.UUID) error
	RevokeDeviceSessions(ctx context.Context, deviceID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
