// Package guesttest provides a testify mock of guest.Store.
package guesttest

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/rsvpkit/wedding/svc/guest"
)

// MockStore is a testify mock of guest.Store.
type MockStore struct {
	mock.Mock
}

var _ guest.Store = (*MockStore)(nil)

func (m *MockStore) GetByEmail(ctx context.Context, email string) (*guest.Guest, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*guest.Guest), args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id uuid.UUID) (*guest.Guest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*guest.Guest), args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]guest.Guest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]guest.Guest), args.Error(1)
}

func (m *MockStore) NamesByEmail(ctx context.Context, emails []string) (map[string]string, error) {
	args := m.Called(ctx, emails)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockStore) UpdateRSVP(ctx context.Context, id uuid.UUID, u guest.RSVPUpdate) error {
	return m.Called(ctx, id, u).Error(0)
}

func (m *MockStore) UpdateProfile(ctx context.Context, id uuid.UUID, u guest.ProfileUpdate) error {
	return m.Called(ctx, id, u).Error(0)
}

func (m *MockStore) Upsert(ctx context.Context, in guest.Invitee) (*guest.Guest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*guest.Guest), args.Error(1)
}
