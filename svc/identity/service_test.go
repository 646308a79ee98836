package identity_test

import (
	"context"
	"errors"
	"html"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/email"
	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/guest/guesttest"
	"github.com/rsvpkit/wedding/svc/identity"
)

const testSecret = "test-secret-32-chars-long-123456"

type fixture struct {
	svc    *identity.Service
	guests *guesttest.MockStore
	sender *MockSender
	store  *memStore
	clock  *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T, cfg identity.Config) *fixture {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://wedding.test/"
	}
	f := &fixture{
		guests: &guesttest.MockStore{},
		sender: &MockSender{},
		store:  newMemStore(),
		clock:  &testClock{now: time.Now()},
	}
	svc, err := identity.NewService(cfg, f.guests, f.store, f.sender, identity.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func invited(addr string) *guest.Guest {
	return &guest.Guest{ID: uuid.New(), Email: addr}
}

// requestLink runs a successful sign-in request and returns the emailed link.
func (f *fixture) requestLink(t *testing.T, addr string) *url.URL {
	t.Helper()

	var sent email.SendEmailParams
	f.guests.On("GetByEmail", mock.Anything, addr).Return(invited(addr), nil)
	f.sender.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.SendEmailParams) }).
		Return("msg-1", nil).Once()

	require.NoError(t, f.svc.RequestSignIn(context.Background(), "  "+addr+" "))
	assert.Equal(t, addr, sent.SendTo)

	for _, field := range strings.Fields(sent.BodyText) {
		if strings.HasPrefix(field, "https://") {
			u, err := url.Parse(field)
			require.NoError(t, err)
			assert.Contains(t, sent.BodyHTML, `<a href="`+html.EscapeString(field)+`"`)
			return u
		}
	}
	require.FailNow(t, "no link in message", sent.BodyText)
	return nil
}

func TestNewService_RequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := identity.NewService(identity.Config{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestRequestSignIn(t *testing.T) {
	t.Parallel()

	t.Run("sends a magic link to an invited guest", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{})

		link := f.requestLink(t, "ada@example.com")
		assert.Equal(t, "wedding.test", link.Host)
		assert.Equal(t, "/auth/confirm", link.Path)
		assert.Equal(t, identity.TypeMagicLink, link.Query().Get("type"))
		assert.NotEmpty(t, link.Query().Get("token_hash"))
		f.sender.AssertExpectations(t)
	})

	t.Run("rejects malformed email without a lookup", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{})

		err := f.svc.RequestSignIn(context.Background(), "not-an-email")
		assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))
		f.guests.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("unknown email never reaches the transport", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{})
		f.guests.On("GetByEmail", mock.Anything, "stranger@example.com").Return(nil, guest.ErrNotFound)

		err := f.svc.RequestSignIn(context.Background(), "stranger@example.com")
		assert.Equal(t, core.KindNotFound, core.KindOf(err))
		assert.Contains(t, core.Message(err), "Email not found")
		f.sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("slow eligibility check times out", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{SignInTimeout: 20 * time.Millisecond})
		f.guests.On("GetByEmail", mock.Anything, "slow@example.com").
			Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
			Return(nil, context.DeadlineExceeded)

		err := f.svc.RequestSignIn(context.Background(), "slow@example.com")
		assert.Equal(t, core.KindTimeout, core.KindOf(err))
		f.sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{})
		f.guests.On("GetByEmail", mock.Anything, "ada@example.com").Return(invited("ada@example.com"), nil)
		f.sender.On("SendEmail", mock.Anything, mock.Anything).Return("", errors.New("smtp down"))

		err := f.svc.RequestSignIn(context.Background(), "ada@example.com")
		assert.Equal(t, core.KindTransportFailure, core.KindOf(err))
	})

	t.Run("no transport configured", func(t *testing.T) {
		t.Parallel()
		guests := &guesttest.MockStore{}
		guests.On("GetByEmail", mock.Anything, "ada@example.com").Return(invited("ada@example.com"), nil)
		svc, err := identity.NewService(identity.Config{Secret: testSecret}, guests, newMemStore(), nil)
		require.NoError(t, err)

		err = svc.RequestSignIn(context.Background(), "ada@example.com")
		assert.Equal(t, core.KindServiceUnavailable, core.KindOf(err))
		assert.ErrorIs(t, err, email.ErrNotConfigured)
	})
}

func TestVerify(t *testing.T) {
	t.Parallel()

	t.Run("creates a session once and publishes sign-in", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{})
		link := f.requestLink(t, "ada@example.com")

		sub := f.svc.Events().Subscribe(context.Background())
		defer sub.Close()

		sess, err := f.svc.Verify(context.Background(), link.Query().Get("token_hash"), "magiclink", "device-1")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", sess.Email)
		assert.Equal(t, "device-1", sess.DeviceID)
		assert.NotEmpty(t, sess.AccessToken)
		assert.NotEmpty(t, sess.RefreshToken)

		msg := <-sub.Receive()
		assert.Equal(t, identity.SignedIn, msg.Data.Kind)
		assert.Equal(t, uint64(1), msg.Data.Seq)
		assert.Equal(t, "device-1", msg.Data.DeviceID)
		require.NotNil(t, msg.Data.Identity)
		assert.Equal(t, sess.SessionID, msg.Data.Identity.SessionID)

		_, err = f.svc.Verify(context.Background(), link.Query().Get("token_hash"), "magiclink", "device-1")
		assert.Equal(t, core.KindUnauthorized, core.KindOf(err))
		assert.ErrorIs(t, err, identity.ErrTokenUsed)
	})

	t.Run("rejects tampered, mistyped and expired tokens", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{MagicLinkTTL: time.Minute})
		tok := f.requestLink(t, "ada@example.com").Query().Get("token_hash")

		_, err := f.svc.Verify(context.Background(), tok, "signup", "d")
		assert.Equal(t, core.KindUnauthorized, core.KindOf(err))

		_, err = f.svc.Verify(context.Background(), tok+"x", "magiclink", "d")
		assert.ErrorIs(t, err, identity.ErrTokenInvalid)

		f.clock.Advance(2 * time.Minute)
		_, err = f.svc.Verify(context.Background(), tok, "magiclink", "d")
		assert.ErrorIs(t, err, identity.ErrTokenExpired)
	})

	t.Run("guest removed after the link was sent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, identity.Config{})
		tok := f.requestLink(t, "ada@example.com").Query().Get("token_hash")

		guests := &guesttest.MockStore{}
		guests.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, guest.ErrNotFound)
		svc, err := identity.NewService(identity.Config{Secret: testSecret}, guests, f.store, nil)
		require.NoError(t, err)

		_, err = svc.Verify(context.Background(), tok, "magiclink", "d")
		assert.Equal(t, core.KindUnauthorized, core.KindOf(err))
		assert.Empty(t, f.store.sessions)
	})
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, identity.Config{})
	ctx := context.Background()
	tok := f.requestLink(t, "ada@example.com").Query().Get("token_hash")

	events := f.svc.Events().Subscribe(ctx)
	defer events.Close()

	sess, err := f.svc.Verify(ctx, tok, "magiclink", "device-1")
	require.NoError(t, err)

	id, err := f.svc.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, id.SessionID)

	cur, err := f.svc.CurrentSession(ctx, "device-1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "ada@example.com", cur.Email)

	refreshed, err := f.svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, sess.SessionID, refreshed.SessionID)

	_, err = f.svc.Refresh(ctx, sess.RefreshToken)
	assert.Equal(t, core.KindUnauthorized, core.KindOf(err), "old refresh token is single use")

	require.NoError(t, f.svc.SignOut(ctx, sess.SessionID))
	require.NoError(t, f.svc.SignOut(ctx, sess.SessionID))

	_, err = f.svc.Authenticate(ctx, refreshed.AccessToken)
	assert.Equal(t, core.KindUnauthorized, core.KindOf(err))

	cur, err = f.svc.CurrentSession(ctx, "device-1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	var kinds []identity.EventKind
	var seqs []uint64
	for range 3 {
		msg := <-events.Receive()
		kinds = append(kinds, msg.Data.Kind)
		seqs = append(seqs, msg.Data.Seq)
	}
	assert.Equal(t, []identity.EventKind{identity.SignedIn, identity.TokenRefreshed, identity.SignedOut}, kinds)
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, identity.Config{})

	_, err := f.svc.Authenticate(context.Background(), "not.a.jwt")
	assert.Equal(t, core.KindUnauthorized, core.KindOf(err))
}
