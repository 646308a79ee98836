package identity_test

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/rsvpkit/wedding/pkg/email"
	"github.com/rsvpkit/wedding/svc/identity"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendEmail(ctx context.Context, params email.SendEmailParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

// memStore is an in-memory identity.Store for round-trip tests.
type memStore struct {
	mu       sync.Mutex
	tokens   map[uuid.UUID]bool
	sessions map[uuid.UUID]*identity.SessionRecord
}

func newMemStore() *memStore {
	return &memStore{
		tokens:   make(map[uuid.UUID]bool),
		sessions: make(map[uuid.UUID]*identity.SessionRecord),
	}
}

func (s *memStore) ConsumeSignInToken(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[id] {
		return identity.ErrTokenUsed
	}
	s.tokens[id] = true
	return nil
}

func (s *memStore) CreateSession(_ context.Context, rec identity.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ID] = &rec
	return nil
}

func (s *memStore) GetSession(_ context.Context, id uuid.UUID) (*identity.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, identity.ErrSessionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) GetSessionByRefreshHash(_ context.Context, hash []byte) (*identity.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sessions {
		if bytes.Equal(rec.RefreshTokenHash, hash) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, identity.ErrSessionNotFound
}

func (s *memStore) LatestActiveSession(_ context.Context, deviceID string, now time.Time) (*identity.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *identity.SessionRecord
	for _, rec := range s.sessions {
		if rec.DeviceID != deviceID || !rec.Active(now) {
			continue
		}
		if latest == nil || rec.RefreshedAt.After(latest.RefreshedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, identity.ErrSessionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memStore) RotateRefreshToken(_ context.Context, id uuid.UUID, oldHash, newHash []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok || rec.RevokedAt != nil || !bytes.Equal(rec.RefreshTokenHash, oldHash) {
		return identity.ErrSessionNotFound
	}
	rec.RefreshTokenHash = newHash
	rec.ExpiresAt = expiresAt
	return nil
}

func (s *memStore) RevokeSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok || rec.RevokedAt != nil {
		return identity.ErrSessionNotFound
	}
	now := time.Now()
	rec.RevokedAt = &now
	return nil
}

func (s *memStore) RevokeDeviceSessions(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, rec := range s.sessions {
		if rec.DeviceID == deviceID && rec.RevokedAt == nil {
			rec.RevokedAt = &now
		}
	}
	return nil
}

func (s *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.sessions {
		if !now.Before(rec.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
