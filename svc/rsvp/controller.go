// Package rsvp loads and saves one guest's RSVP.
package rsvp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/validator"
	"github.com/rsvpkit/wedding/svc/guest"
)

const maxTextLen = 2000

// Store is the part of the guest store the controller writes through.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*guest.Guest, error)
	UpdateRSVP(ctx context.Context, id uuid.UUID, u guest.RSVPUpdate) error
	UpdateProfile(ctx context.Context, id uuid.UUID, u guest.ProfileUpdate) error
}

// Controller loads and saves RSVPs through the guest store.
type Controller struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	stampMu   sync.Mutex
	lastStamp time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger; nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for completion stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController returns a controller writing through store.
func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the guest's row. A missing row is NotFound; store failures
// stay distinguishable as Timeout or Unknown.
func (c *Controller) Load(ctx context.Context, email string) (*Result, error) {
	g, err := c.get(ctx, email)
	if err != nil {
		return nil, err
	}
	return resultFrom(g), nil
}

func (c *Controller) get(ctx context.Context, email string) (*guest.Guest, error) {
	g, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, guest.ErrNotFound) {
			return nil, core.NotFound("We couldn't find your invitation. Please contact the wedding organizers.", err)
		}
		return nil, core.Wrap(err)
	}
	return g, nil
}

// Submit validates and saves the form in one update, then returns the
// reloaded row. Plus-one fields are cleared whenever HasPlusOne is false.
func (c *Controller) Submit(ctx context.Context, email string, f Form) (*Result, error) {
	if err := validateForm(f); err != nil {
		return nil, err
	}

	g, err := c.get(ctx, email)
	if err != nil {
		return nil, err
	}

	u := guest.RSVPUpdate{
		IsAttending:        f.IsAttending == Yes,
		DietaryPreferences: nullable(f.DietaryPreferences),
		HasPlusOne:         f.HasPlusOne,
		AdditionalNotes:    nullable(f.AdditionalNotes),
		CompletedAt:        c.stamp(),
	}
	if f.HasPlusOne {
		u.PlusOneName = nullable(f.PlusOneName)
		u.PlusOneEmail = nullable(f.PlusOneEmail)
		u.PlusOneDietaryPreferences = nullable(f.PlusOneDietaryPreferences)
	}

	if err := c.store.UpdateRSVP(ctx, g.ID, u); err != nil {
		if errors.Is(err, guest.ErrNotFound) {
			return nil, core.NotFound("We couldn't find your invitation. Please contact the wedding organizers.", err)
		}
		c.logger.ErrorContext(ctx, "failed to save rsvp",
			logger.Component("rsvp"),
			logger.GuestID(g.ID),
			logger.Error(err),
		)
		return nil, core.Wrap(err)
	}

	c.logger.InfoContext(ctx, "rsvp submitted",
		logger.Component("rsvp"),
		logger.GuestID(g.ID),
		slog.String("attending", string(f.IsAttending)),
		slog.Bool("plus_one", f.HasPlusOne),
	)
	return c.Load(ctx, email)
}

// UpdateProfile changes the display name and notes. Fields absent from f
// keep their stored value.
func (c *Controller) UpdateProfile(ctx context.Context, email string, f ProfileForm) (*Result, error) {
	var rules []validator.Rule
	if f.Name != nil {
		name := norm.NFC.String(strings.TrimSpace(*f.Name))
		f.Name = &name
		rules = append(rules, validator.MaxLen("name", name, 200))
	}
	if f.AdditionalNotes != nil {
		rules = append(rules, validator.MaxLen("additional_notes", *f.AdditionalNotes, maxTextLen))
	}
	if err := validator.Apply(rules...); err != nil {
		return nil, invalid(err)
	}

	g, err := c.get(ctx, email)
	if err != nil {
		return nil, err
	}
	u := guest.ProfileUpdate{Name: g.Name, AdditionalNotes: g.AdditionalNotes}
	if f.Name != nil {
		u.Name = nullable(*f.Name)
	}
	if f.AdditionalNotes != nil {
		u.AdditionalNotes = nullable(*f.AdditionalNotes)
	}
	if err := c.store.UpdateProfile(ctx, g.ID, u); err != nil {
		return nil, core.Wrap(err)
	}
	return c.Load(ctx, email)
}

// stamp returns a completion time strictly after the previous one, at the
// store's microsecond precision.
func (c *Controller) stamp() time.Time {
	c.stampMu.Lock()
	defer c.stampMu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.lastStamp) {
		t = c.lastStamp.Add(time.Microsecond)
	}
	c.lastStamp = t
	return t
}

func validateForm(f Form) error {
	rules := []validator.Rule{
		validator.Check("is_attending", f.IsAttending == Yes || f.IsAttending == No,
			"Please let us know whether you will attend."),
		validator.MaxLen("dietary_preferences", f.DietaryPreferences, maxTextLen),
		validator.MaxLen("additional_notes", f.AdditionalNotes, maxTextLen),
	}
	if f.HasPlusOne {
		rules = append(rules,
			validator.MaxLen("plus_one_name", f.PlusOneName, 200),
			validator.OptionalEmail("plus_one_email", f.PlusOneEmail),
			validator.MaxLen("plus_one_dietary_preferences", f.PlusOneDietaryPreferences, maxTextLen),
		)
	}
	if err := validator.Apply(rules...); err != nil {
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	ve := validator.Extract(err)
	if len(ve) == 0 {
		return core.Invalid("", "Please check the form.", err)
	}
	first := ve.First()
	return core.Invalid(first.Field, first.Message, ve)
}
