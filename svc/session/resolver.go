package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/identity"
)

type GuestFinder interface {
	GetByEmail(ctx context.Context, email string) (*guest.Guest, error)
}

// Resolver derives a role from the guest row. The row is the only source
// of admin status.
type Resolver struct {
	guests GuestFinder
	logger *slog.Logger
}

// NewResolver returns a resolver reading guests; a nil log discards.
func NewResolver(guests GuestFinder, log *slog.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{guests: guests, logger: log}
}

// ResolveContext never fails: a failed or empty lookup degrades a signed-in
// identity to RoleGuest and is logged.
func (r *Resolver) ResolveContext(ctx context.Context, id *identity.Identity) Context {
	if id == nil {
		return Context{Role: RoleAnonymous}
	}

	g, err := r.guests.GetByEmail(ctx, id.Email)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, guest.ErrNotFound) {
			level = slog.LevelWarn
		}
		if !errors.Is(err, context.Canceled) {
			r.logger.Log(ctx, level, "role lookup failed, treating as guest",
				logger.Component("session"),
				logger.Email(id.Email),
				logger.Error(err),
			)
		}
		return Context{Identity: id, Role: RoleGuest, Degraded: true}
	}

	role := RoleGuest
	if g.IsAdmin {
		role = RoleAdmin
	}
	return Context{Identity: id, Guest: g, Role: role}
}

// Resolve never fails: a lookup error degrades to RoleGuest and is logged.
func (r *Resolver) Resolve(ctx context.Context, id *identity.Identity) Role {
	return r.ResolveContext(ctx, id).Role
}
