package rsvp_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/guest/guesttest"
	"github.com/rsvpkit/wedding/svc/rsvp"
)

// memStore applies updates the way the SQL repository does.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*guest.Guest
}

func newMemStore(rows ...*guest.Guest) *memStore {
	s := &memStore{rows: make(map[string]*guest.Guest)}
	for _, g := range rows {
		s.rows[g.Email] = g
	}
	return s
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*guest.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.rows[email]
	if !ok {
		return nil, guest.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) find(id uuid.UUID) *guest.Guest {
	for _, g := range s.rows {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (s *memStore) UpdateRSVP(_ context.Context, id uuid.UUID, u guest.RSVPUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.find(id)
	if g == nil {
		return guest.ErrNotFound
	}
	attending := u.IsAttending
	completed := u.CompletedAt
	g.HasRSVPed = true
	g.IsAttending = &attending
	g.DietaryPreferences = u.DietaryPreferences
	g.HasPlusOne = u.HasPlusOne
	g.PlusOneName = u.PlusOneName
	g.PlusOneEmail = u.PlusOneEmail
	g.PlusOneDietaryPreferences = u.PlusOneDietaryPreferences
	g.AdditionalNotes = u.AdditionalNotes
	g.RSVPCompletedAt = &completed
	return nil
}

func (s *memStore) UpdateProfile(_ context.Context, id uuid.UUID, u guest.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.find(id)
	if g == nil {
		return guest.ErrNotFound
	}
	g.Name = u.Name
	g.AdditionalNotes = u.AdditionalNotes
	return nil
}

func strPtr(s string) *string { return &s }

func newGuest(email string) *guest.Guest {
	return &guest.Guest{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("fresh row loads as undecided with empty text", func(t *testing.T) {
		t.Parallel()
		c := rsvp.NewController(newMemStore(newGuest("ada@x.com")))

		res, err := c.Load(context.Background(), "ada@x.com")
		require.NoError(t, err)
		assert.Equal(t, rsvp.Undecided, res.Form.IsAttending)
		assert.Empty(t, res.Form.DietaryPreferences)
		assert.False(t, res.HasRSVPed)
	})

	t.Run("declined stays no", func(t *testing.T) {
		t.Parallel()
		g := newGuest("bo@x.com")
		no := false
		g.IsAttending = &no
		c := rsvp.NewController(newMemStore(g))

		res, err := c.Load(context.Background(), "bo@x.com")
		require.NoError(t, err)
		assert.Equal(t, rsvp.No, res.Form.IsAttending)
	})

	tests := []struct {
		name     string
		storeErr error
		wantKind core.Kind
	}{
		{"missing row", guest.ErrNotFound, core.KindNotFound},
		{"transient failure", errors.New("connection reset"), core.KindUnknown},
		{"deadline", context.DeadlineExceeded, core.KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &guesttest.MockStore{}
			store.On("GetByEmail", mock.Anything, "x@x.com").Return(nil, tt.storeErr)

			_, err := rsvp.NewController(store).Load(context.Background(), "x@x.com")
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}
}

func TestSubmit_UndecidedIsRejectedWithoutWrite(t *testing.T) {
	t.Parallel()

	for _, a := range []rsvp.Attendance{rsvp.Undecided, "", "maybe"} {
		store := &guesttest.MockStore{}
		_, err := rsvp.NewController(store).Submit(context.Background(), "ada@x.com", rsvp.Form{IsAttending: a})

		require.Error(t, err)
		assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))
		var ce *core.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "is_attending", ce.Field)
		store.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "UpdateRSVP", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestSubmit_ClearsPlusOneFields(t *testing.T) {
	t.Parallel()

	g := newGuest("ada@x.com")
	g.HasPlusOne = true
	g.PlusOneName = strPtr("Old Friend")
	g.PlusOneEmail = strPtr("old@x.com")
	g.PlusOneDietaryPreferences = strPtr("vegan")
	store := newMemStore(g)
	c := rsvp.NewController(store)

	res, err := c.Submit(context.Background(), "ada@x.com", rsvp.Form{
		IsAttending:               rsvp.Yes,
		HasPlusOne:                false,
		PlusOneName:               "Stale Name",
		PlusOneEmail:              "stale@x.com",
		PlusOneDietaryPreferences: "stale",
	})
	require.NoError(t, err)
	assert.False(t, res.Form.HasPlusOne)
	assert.Empty(t, res.Form.PlusOneName)

	row, err := store.GetByEmail(context.Background(), "ada@x.com")
	require.NoError(t, err)
	assert.Nil(t, row.PlusOneName)
	assert.Nil(t, row.PlusOneEmail)
	assert.Nil(t, row.PlusOneDietaryPreferences)
	assert.True(t, row.HasRSVPed)
}

func TestSubmit_RoundTripAndRestamp(t *testing.T) {
	t.Parallel()

	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(newGuest("ada@x.com"))
	c := rsvp.NewController(store, rsvp.WithClock(func() time.Time { return frozen }))

	v := rsvp.Form{
		IsAttending:               rsvp.Yes,
		DietaryPreferences:        "no nuts",
		HasPlusOne:                true,
		PlusOneName:               "Bob",
		PlusOneEmail:              "bob@x.com",
		PlusOneDietaryPreferences: "vegetarian",
		AdditionalNotes:           "see you there",
	}

	first, err := c.Submit(context.Background(), "ada@x.com", v)
	require.NoError(t, err)
	assert.Equal(t, v, first.Form)
	require.NotNil(t, first.RSVPCompletedAt)

	reloaded, err := c.Load(context.Background(), "ada@x.com")
	require.NoError(t, err)
	assert.Equal(t, v, reloaded.Form)

	second, err := c.Submit(context.Background(), "ada@x.com", v)
	require.NoError(t, err)
	assert.Equal(t, first.Form, second.Form)
	require.NotNil(t, second.RSVPCompletedAt)
	assert.True(t, second.RSVPCompletedAt.After(*first.RSVPCompletedAt))
}

func TestSubmit_StoreFailure(t *testing.T) {
	t.Parallel()

	g := newGuest("ada@x.com")
	store := &guesttest.MockStore{}
	store.On("GetByEmail", mock.Anything, "ada@x.com").Return(g, nil)
	store.On("UpdateRSVP", mock.Anything, g.ID, mock.MatchedBy(func(u guest.RSVPUpdate) bool {
		return !u.IsAttending && u.PlusOneName == nil
	})).Return(errors.New("write failed")).Once()

	_, err := rsvp.NewController(store).Submit(context.Background(), "ada@x.com", rsvp.Form{IsAttending: rsvp.No})
	assert.Equal(t, core.KindUnknown, core.KindOf(err))
	store.AssertExpectations(t)
}

func TestSubmit_InvalidPlusOneEmail(t *testing.T) {
	t.Parallel()

	store := &guesttest.MockStore{}
	_, err := rsvp.NewController(store).Submit(context.Background(), "ada@x.com", rsvp.Form{
		IsAttending:  rsvp.Yes,
		HasPlusOne:   true,
		PlusOneEmail: "not an email",
	})
	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "plus_one_email", ce.Field)
	store.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestUpdateProfile_NormalizesName(t *testing.T) {
	t.Parallel()

	store := newMemStore(newGuest("ada@x.com"))
	res, err := rsvp.NewController(store).UpdateProfile(context.Background(), "ada@x.com", rsvp.ProfileForm{
		Name: strPtr("  Rene\u0301e "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ren\u00e9e", res.Name)
}

func TestUpdateProfile_KeepsAbsentFields(t *testing.T) {
	t.Parallel()

	g := newGuest("ada@x.com")
	g.Name = strPtr("Ada Lovelace")
	g.AdditionalNotes = strPtr("allergic to nuts; arriving late")
	store := newMemStore(g)
	c := rsvp.NewController(store)

	res, err := c.UpdateProfile(context.Background(), "ada@x.com", rsvp.ProfileForm{Name: strPtr("Ada")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Name)
	assert.Equal(t, "allergic to nuts; arriving late", res.Form.AdditionalNotes)

	res, err = c.UpdateProfile(context.Background(), "ada@x.com", rsvp.ProfileForm{AdditionalNotes: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Name)
	assert.Empty(t, res.Form.AdditionalNotes)
	assert.Nil(t, g.AdditionalNotes, "an empty string clears the column")
}
