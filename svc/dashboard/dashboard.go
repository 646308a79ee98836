// Package dashboard backs the admin page: the guest list with summary
// counts, and audience selection for bulk sends.
package dashboard

import (
	"context"
	"log/slog"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/svc/dispatch"
	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/identity"
)

// Audience selects the recipients of a bulk send.
type Audience string

const (
	// AudienceAll is every invited guest who is not an admin.
	AudienceAll Audience = "all"
	// AudienceTest is the admins only, for trial sends.
	AudienceTest Audience = "test"
	// AudiencePending is non-admin guests without an RSVP.
	AudiencePending Audience = "pending"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudienceTest, AudiencePending:
		return true
	}
	return false
}

// Lister reads every guest in creation order.
type Lister interface {
	List(ctx context.Context) ([]guest.Guest, error)
}

// Dispatcher sends one bulk batch on behalf of caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, caller *identity.Identity, req dispatch.Request) ([]dispatch.Outcome, error)
}

// Overview is the admin view of the guest list.
type Overview struct {
	Guests []guest.Guest `json:"guests"`
	Stats  guest.Stats   `json:"stats"`
}

// Service backs the admin dashboard.
type Service struct {
	guests     Lister
	dispatcher Dispatcher
	logger     *slog.Logger
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

// NewService returns a dashboard over guests that sends through dispatcher.
func NewService(guests Lister, dispatcher Dispatcher, opts ...Option) *Service {
	s := &Service{guests: guests, dispatcher: dispatcher, logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview lists every guest ordered by creation time, with counts.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	guests, err := s.guests.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list guests",
			logger.Component("dashboard"),
			logger.Error(err),
		)
		return nil, core.Unknown(err)
	}
	if guests == nil {
		guests = []guest.Guest{}
	}
	return &Overview{Guests: guests, Stats: guest.ComputeStats(guests)}, nil
}

// Recipients picks emails for audience, keeping list order.
func Recipients(guests []guest.Guest, audience Audience) []string {
	out := make([]string, 0, len(guests))
	for _, g := range guests {
		var include bool
		switch audience {
		case AudienceAll:
			include = !g.IsAdmin
		case AudienceTest:
			include = g.IsAdmin
		case AudiencePending:
			include = !g.IsAdmin && !g.HasRSVPed
		}
		if include {
			out = append(out, g.Email)
		}
	}
	return out
}

// Send dispatches t to audience, reading the guest list fresh.
func (s *Service) Send(ctx context.Context, caller *identity.Identity, t dispatch.Type, audience Audience) ([]dispatch.Outcome, error) {
	if !audience.Valid() {
		return nil, core.InvalidField("audience", "Invalid audience")
	}
	guests, err := s.guests.List(ctx)
	if err != nil {
		return nil, core.Unknown(err)
	}
	recipients := Recipients(guests, audience)

	s.logger.InfoContext(ctx, "bulk send requested",
		logger.Component("dashboard"),
		slog.String("type", string(t)),
		slog.String("audience", string(audience)),
		logger.Count("recipients", len(recipients)),
	)
	return s.dispatcher.Dispatch(ctx, caller, dispatch.Request{Type: t, Recipients: recipients})
}
