// Package dispatch sends the admin-triggered bulk emails: one message per
// recipient, in order, with a fixed pause between sends.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/email"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/validator"
	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/identity"
)

const msgInterrupted = "not sent: server shutting down"

// GuestStore is what the dispatcher reads: the caller's row for the admin
// check and recipient names for greetings.
type GuestStore interface {
	GetByEmail(ctx context.Context, email string) (*guest.Guest, error)
	NamesByEmail(ctx context.Context, emails []string) (map[string]string, error)
}

// Dispatcher sends one batch at a time per request, sequentially.
type Dispatcher struct {
	cfg      Config
	guests   GuestStore
	sender   email.Sender
	claims   Claims
	recorder Recorder
	logger   *slog.Logger
	shutdown context.Context
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger; nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClaims enables the one-batch-per-type guard.
func WithClaims(c Claims) Option {
	return func(d *Dispatcher) { d.claims = c }
}

// WithRecorder appends every outcome to the send log.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithShutdown ties running batches to ctx. Batches ignore request
// cancellation and stop only when ctx ends.
func WithShutdown(ctx context.Context) Option {
	return func(d *Dispatcher) { d.shutdown = ctx }
}

// WithSleep replaces the pause between sends.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.sleep = fn
		}
	}
}

// New builds a dispatcher. A nil sender means the transport is not
// configured and every batch fails with ServiceUnavailable.
func New(cfg Config, guests GuestStore, sender email.Sender, opts ...Option) *Dispatcher {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	d := &Dispatcher{
		cfg:    cfg,
		guests: guests,
		sender: sender,
		logger: logger.Discard(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Configured reports whether a transport is present.
func (d *Dispatcher) Configured() bool { return d.sender != nil }

// Authorize fails closed: only a caller whose guest row has is_admin passes.
func (d *Dispatcher) Authorize(ctx context.Context, caller *identity.Identity) error {
	if caller == nil || caller.Email == "" {
		return core.Unauthorized("Unauthorized - No user found", nil)
	}
	g, err := d.guests.GetByEmail(ctx, caller.Email)
	if err != nil {
		d.logger.WarnContext(ctx, "admin check failed",
			logger.Component("dispatch"),
			logger.Email(caller.Email),
			logger.Error(err),
		)
		return core.Unauthorized("Unauthorized - Not an admin", err)
	}
	if !g.IsAdmin {
		return core.Unauthorized("Unauthorized - Not an admin", nil)
	}
	return nil
}

func validateRequest(req Request) error {
	rules := []validator.Rule{
		validator.Check("type", req.Type.Valid(), "Invalid email type"),
		validator.NotEmpty("recipients", req.Recipients),
	}
	for i, addr := range req.Recipients {
		rules = append(rules, validator.Check("recipients", validator.IsEmail(addr),
			fmt.Sprintf("recipients[%d] must be a valid email address", i)))
	}
	err := validator.Apply(rules...)
	if err == nil {
		return nil
	}
	first := validator.Extract(err).First()
	return core.Invalid(first.Field, first.Message, err)
}

// Dispatch authorizes the caller, validates the request and sends one
// message per recipient. A failed send is recorded and the loop continues;
// the delay follows every send, successful or not.
func (d *Dispatcher) Dispatch(ctx context.Context, caller *identity.Identity, req Request) ([]Outcome, error) {
	if err := d.Authorize(ctx, caller); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if d.sender == nil {
		return nil, core.ServiceUnavailable(
			"Email service not configured. Please set POSTMARK_SERVER_TOKEN in environment variables.",
			email.ErrNotConfigured)
	}

	if d.claims != nil {
		release, err := d.claims.Claim(ctx, string(req.Type), d.cfg.ClaimTTL)
		switch {
		case errors.Is(err, ErrClaimHeld):
			return nil, core.Conflict("A batch of this email type is already being sent.", err)
		case err != nil:
			d.logger.WarnContext(ctx, "batch guard unavailable, sending without it",
				logger.Component("dispatch"),
				logger.Error(err),
			)
		default:
			defer release()
		}
	}

	batchCtx, cancel := d.batchContext(ctx)
	defer cancel()

	return d.run(batchCtx, caller.Email, req), nil
}

// batchContext keeps request values but not request cancellation.
func (d *Dispatcher) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	batchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if d.shutdown == nil {
		return batchCtx, cancel
	}
	stop := context.AfterFunc(d.shutdown, cancel)
	return batchCtx, func() {
		stop()
		cancel()
	}
}

func (d *Dispatcher) run(ctx context.Context, sentBy string, req Request) []Outcome {
	batchID := uuid.New()
	start := time.Now()

	names, err := d.guests.NamesByEmail(ctx, req.Recipients)
	if err != nil {
		d.logger.WarnContext(ctx, "name lookup failed, using generic greeting",
			logger.Component("dispatch"),
			logger.Error(err),
		)
		names = nil
	}

	headers := map[string]string{
		"List-Unsubscribe": "<mailto:" + d.cfg.Unsubscribe + "?subject=Unsubscribe>",
	}

	outcomes := make([]Outcome, 0, len(req.Recipients))
	for i, recipient := range req.Recipients {
		if ctx.Err() != nil {
			for _, rest := range req.Recipients[i:] {
				o := Outcome{Email: rest, Error: msgInterrupted}
				d.record(ctx, batchID, req.Type, sentBy, o)
				outcomes = append(outcomes, o)
			}
			break
		}

		o := d.sendOne(ctx, req.Type, recipient, names[recipient], headers)
		d.record(ctx, batchID, req.Type, sentBy, o)
		outcomes = append(outcomes, o)

		_ = d.sleep(ctx, d.cfg.Delay)
	}

	sent := 0
	for _, o := range outcomes {
		if o.Success {
			sent++
		}
	}
	d.logger.InfoContext(ctx, "bulk email batch finished",
		logger.Component("dispatch"),
		slog.String("batch_id", batchID.String()),
		slog.String("type", string(req.Type)),
		logger.Count("recipients", len(req.Recipients)),
		logger.Count("sent", sent),
		logger.Count("failed", len(outcomes)-sent),
		logger.Duration(time.Since(start)),
	)
	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, t Type, recipient, name string, headers map[string]string) Outcome {
	msg, err := Render(ctx, t, name, d.cfg.SiteURL)
	if err != nil {
		return Outcome{Email: recipient, Error: err.Error()}
	}

	id, err := d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   recipient,
		Subject:  msg.Subject,
		BodyHTML: msg.HTML,
		BodyText: msg.Text,
		Tag:      string(t),
		ReplyTo:  d.cfg.ReplyTo,
		Headers:  headers,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to send email",
			logger.Component("dispatch"),
			logger.Email(recipient),
			logger.Error(err),
		)
		return Outcome{Email: recipient, Error: err.Error()}
	}
	return Outcome{Email: recipient, Success: true, ID: id}
}

func (d *Dispatcher) record(ctx context.Context, batchID uuid.UUID, t Type, sentBy string, o Outcome) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.Record(context.WithoutCancel(ctx), LogEntry{
		BatchID:   batchID,
		Type:      t,
		Recipient: o.Email,
		Success:   o.Success,
		MessageID: o.ID,
		Error:     o.Error,
		SentBy:    sentBy,
	})
	if err != nil {
		d.logger.WarnContext(ctx, "failed to record email outcome",
			logger.Component("dispatch"),
			logger.Email(o.Email),
			logger.Error(err),
		)
	}
}

// Preview renders a message without sending it.
func (d *Dispatcher) Preview(ctx context.Context, t Type, name string) (Message, error) {
	if !t.Valid() {
		return Message{}, core.InvalidField("type", "Invalid email type")
	}
	msg, err := Render(ctx, t, name, d.cfg.SiteURL)
	if err != nil {
		return Message{}, core.Unknown(err)
	}
	return msg, nil
}

// TransportStatus checks the transport credentials when the transport
// supports it.
func (d *Dispatcher) TransportStatus(ctx context.Context) error {
	if d.sender == nil {
		return core.ServiceUnavailable("Email service not configured.", email.ErrNotConfigured)
	}
	p, ok := d.sender.(email.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return core.TransportFailure("Email service rejected the configured credentials.", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
