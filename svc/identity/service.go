// Package identity is the magic-link identity provider: it signs invited
// guests in, keeps their sessions and publishes every session change.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/broadcast"
	"github.com/rsvpkit/wedding/pkg/email"
	"github.com/rsvpkit/wedding/pkg/email/templates"
	"github.com/rsvpkit/wedding/pkg/jwt"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/token"
	"github.com/rsvpkit/wedding/pkg/validator"
	"github.com/rsvpkit/wedding/svc/guest"
)

const refreshTokenBytes = 32

// GuestFinder is the part of the guest store sign-in depends on.
type GuestFinder interface {
	GetByEmail(ctx context.Context, email string) (*guest.Guest, error)
}

type magicLinkPayload struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Type     string    `json:"type"`
	ExpireAt int64     `json:"exp"`
}

type accessClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	DeviceID  string `json:"did"`
	jwt.RegisteredClaims
}

// Service is the magic-link identity provider.
type Service struct {
	cfg    Config
	guests GuestFinder
	store  Store
	sender email.Sender
	tokens *jwt.Service
	logger *slog.Logger
	now    func() time.Time

	events broadcast.Broadcaster[Event]
	pubMu  sync.Mutex
	seq    uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger; nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for token and session stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBroadcaster replaces the in-memory event broadcaster.
func WithBroadcaster(b broadcast.Broadcaster[Event]) Option {
	return func(s *Service) {
		if b != nil {
			s.events = b
		}
	}
}

// NewService builds the provider. sender may be nil when no transport is
// configured; sign-in requests then fail with ServiceUnavailable.
func NewService(cfg Config, guests GuestFinder, store Store, sender email.Sender, opts ...Option) (*Service, error) {
	tokens, err := jwt.NewFromString(cfg.Secret)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:    cfg.withDefaults(),
		guests: guests,
		store:  store,
		sender: sender,
		tokens: tokens,
		logger: logger.Discard(),
		now:    time.Now,
		events: broadcast.NewMemoryBroadcaster[Event](16),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.SiteURL = strings.TrimRight(s.cfg.SiteURL, "/")
	return s, nil
}

// Events is the stream of session changes.
func (s *Service) Events() broadcast.Broadcaster[Event] {
	return s.events
}

// RequestSignIn emails a one-time sign-in link to an invited guest.
// Unknown emails are rejected before the transport is contacted.
func (s *Service) RequestSignIn(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if err := validator.Apply(validator.ValidEmail("email", addr)); err != nil {
		return core.InvalidField("email", msgInvalidEmail)
	}

	if err := s.checkEligible(ctx, addr); err != nil {
		return err
	}

	if s.sender == nil {
		return core.ServiceUnavailable(msgMailUnavailable, email.ErrNotConfigured)
	}

	expiresAt := s.now().Add(s.cfg.MagicLinkTTL)
	tok, err := token.Sign(magicLinkPayload{
		ID:       uuid.New(),
		Email:    addr,
		Type:     TypeMagicLink,
		ExpireAt: expiresAt.Unix(),
	}, s.cfg.Secret)
	if err != nil {
		return core.Unknown(err)
	}

	link := s.cfg.SiteURL + "/auth/confirm?" + url.Values{
		"token_hash": {tok},
		"type":       {TypeMagicLink},
	}.Encode()

	html, err := templates.Render(ctx, signInEmail(link))
	if err != nil {
		return core.Unknown(err)
	}

	messageID, err := s.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  signInSubject,
		BodyHTML: html,
		BodyText: signInText(link),
		Tag:      "sign-in",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send sign-in link",
			logger.Component("identity"),
			logger.Email(addr),
			logger.Error(err),
		)
		return core.TransportFailure(msgSendFailed, err)
	}

	s.logger.InfoContext(ctx, "sign-in link sent",
		logger.Component("identity"),
		logger.Email(addr),
		logger.MessageID(messageID),
	)
	return nil
}

func (s *Service) checkEligible(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SignInTimeout)
	defer cancel()

	_, err := s.guests.GetByEmail(ctx, addr)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, guest.ErrNotFound):
		return core.NotFound(msgEmailNotFound, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return core.Timeout(msgSignInTimeout, err)
	default:
		return core.Unknown(err)
	}
}

// Verify exchanges a magic-link token for a new session on deviceID.
func (s *Service) Verify(ctx context.Context, tokenHash, typ, deviceID string) (*Session, error) {
	if typ != TypeMagicLink {
		return nil, core.Unauthorized(msgLinkInvalid, ErrTokenInvalid)
	}
	payload, err := token.Parse[magicLinkPayload](tokenHash, s.cfg.Secret)
	if err != nil {
		return nil, core.Unauthorized(msgLinkInvalid, errors.Join(ErrTokenInvalid, err))
	}
	if payload.Type != typ || payload.ID == uuid.Nil || payload.Email == "" {
		return nil, core.Unauthorized(msgLinkInvalid, ErrTokenInvalid)
	}
	expiresAt := time.Unix(payload.ExpireAt, 0)
	if !s.now().Before(expiresAt) {
		return nil, core.Unauthorized(msgLinkInvalid, ErrTokenExpired)
	}

	if _, err := s.guests.GetByEmail(ctx, payload.Email); err != nil {
		if errors.Is(err, guest.ErrNotFound) {
			return nil, core.Unauthorized(msgNoInvitation, err)
		}
		return nil, core.Wrap(err)
	}

	if err := s.store.ConsumeSignInToken(ctx, payload.ID, payload.Email, expiresAt); err != nil {
		if errors.Is(err, ErrTokenUsed) {
			return nil, core.Unauthorized(msgLinkInvalid, err)
		}
		return nil, core.Wrap(err)
	}

	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	if err := s.store.RevokeDeviceSessions(ctx, deviceID); err != nil {
		return nil, core.Wrap(err)
	}

	sess, err := s.createSession(ctx, payload.Email, deviceID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "guest signed in",
		logger.Component("identity"),
		logger.Email(sess.Email),
		slog.String("session_id", sess.SessionID.String()),
	)
	s.publish(ctx, SignedIn, deviceID, &sess.Identity)
	return sess, nil
}

func (s *Service) createSession(ctx context.Context, addr, deviceID string) (*Session, error) {
	refresh, err := token.Random(refreshTokenBytes)
	if err != nil {
		return nil, core.Unknown(err)
	}
	now := s.now()
	rec := SessionRecord{
		ID:               uuid.New(),
		Email:            addr,
		DeviceID:         deviceID,
		RefreshTokenHash: token.Hash(refresh),
		CreatedAt:        now,
		RefreshedAt:      now,
		ExpiresAt:        now.Add(s.cfg.RefreshTTL),
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return nil, core.Wrap(err)
	}
	return s.issue(rec, refresh)
}

func (s *Service) issue(rec SessionRecord, refresh string) (*Session, error) {
	now := s.now()
	accessExp := now.Add(s.cfg.AccessTTL)
	access, err := s.tokens.Generate(accessClaims{
		Email:     rec.Email,
		SessionID: rec.ID.String(),
		DeviceID:  rec.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rec.Email,
			ID:        rec.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return nil, core.Unknown(err)
	}
	return &Session{
		Identity: Identity{
			SessionID: rec.ID,
			Email:     rec.Email,
			DeviceID:  rec.DeviceID,
		},
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, core.Unauthorized(msgSignInAgain, ErrSessionNotFound)
	}
	oldHash := token.Hash(refreshToken)
	rec, err := s.store.GetSessionByRefreshHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, core.Unauthorized(msgSignInAgain, err)
		}
		return nil, core.Wrap(err)
	}
	if !rec.Active(s.now()) {
		return nil, core.Unauthorized(msgSignInAgain, ErrSessionRevoked)
	}

	if _, err := s.guests.GetByEmail(ctx, rec.Email); err != nil {
		if errors.Is(err, guest.ErrNotFound) {
			_ = s.store.RevokeSession(ctx, rec.ID)
			return nil, core.Unauthorized(msgNoInvitation, err)
		}
		return nil, core.Wrap(err)
	}

	refresh, err := token.Random(refreshTokenBytes)
	if err != nil {
		return nil, core.Unknown(err)
	}
	rec.RefreshTokenHash = token.Hash(refresh)
	rec.ExpiresAt = s.now().Add(s.cfg.RefreshTTL)
	if err := s.store.RotateRefreshToken(ctx, rec.ID, oldHash, rec.RefreshTokenHash, rec.ExpiresAt); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, core.Unauthorized(msgSignInAgain, err)
		}
		return nil, core.Wrap(err)
	}

	sess, err := s.issue(*rec, refresh)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TokenRefreshed, rec.DeviceID, &sess.Identity)
	return sess, nil
}

// SignOut revokes the session. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return core.Wrap(err)
	}
	if rec.RevokedAt != nil {
		return nil
	}
	if err := s.store.RevokeSession(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return core.Wrap(err)
	}

	s.logger.InfoContext(ctx, "guest signed out",
		logger.Component("identity"),
		logger.Email(rec.Email),
	)
	s.publish(ctx, SignedOut, rec.DeviceID, nil)
	return nil
}

// Authenticate validates an access token and that its session is live.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	var claims accessClaims
	if err := s.tokens.Parse(accessToken, &claims); err != nil {
		return nil, core.Unauthorized(msgSignInAgain, err)
	}
	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, core.Unauthorized(msgSignInAgain, errors.Join(ErrTokenInvalid, err))
	}

	rec, err := s.store.GetSession(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, core.Unauthorized(msgSignInAgain, err)
		}
		return nil, core.Wrap(err)
	}
	if !rec.Active(s.now()) {
		return nil, core.Unauthorized(msgSignInAgain, ErrSessionRevoked)
	}

	return &Identity{SessionID: rec.ID, Email: rec.Email, DeviceID: rec.DeviceID}, nil
}

// CurrentSession returns the newest live session of a device, or nil.
func (s *Service) CurrentSession(ctx context.Context, deviceID string) (*Identity, error) {
	if deviceID == "" {
		return nil, nil
	}
	rec, err := s.store.LatestActiveSession(ctx, deviceID, s.now())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, core.Wrap(err)
	}
	return &Identity{SessionID: rec.ID, Email: rec.Email, DeviceID: rec.DeviceID}, nil
}

// Cleanup drops expired tokens and sessions.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, core.Wrap(err)
	}
	return n, nil
}

// publish assigns the next sequence number and broadcasts under one lock so
// subscribers observe events in sequence order.
func (s *Service) publish(ctx context.Context, kind EventKind, deviceID string, id *Identity) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.seq++
	ev := Event{Seq: s.seq, Kind: kind, DeviceID: deviceID}
	if id != nil {
		cp := *id
		ev.Identity = &cp
	}
	if err := s.events.Broadcast(ctx, broadcast.Message[Event]{Data: ev}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session event",
			logger.Component("identity"),
			logger.Event(string(kind)),
			logger.Seq(ev.Seq),
			logger.Error(err),
		)
	}
}
