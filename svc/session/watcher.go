package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/broadcast"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/svc/identity"
)

var (
	ErrWatcherStarted = errors.New("session: watcher already started")
	ErrWatcherClosed  = errors.New("session: watcher closed")
)

// Source is the identity provider as seen by the watcher.
type Source interface {
	Events() broadcast.Broadcaster[identity.Event]
	CurrentSession(ctx context.Context, deviceID string) (*identity.Identity, error)
}

// RoleResolver maps an identity, possibly nil, to a role.
type RoleResolver interface {
	Resolve(ctx context.Context, id *identity.Identity) Role
}

// State is the applied session view. Seq counts the notifications the
// watcher has observed; it never decreases across published states.
type State struct {
	Seq      uint64             `json:"seq"`
	Role     Role               `json:"role"`
	Identity *identity.Identity `json:"identity,omitempty"`
}

// Email is the identity's address, or "" when signed out.
func (s State) Email() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Email
}

// Watcher observes identity events for one scope (a device, or everything)
// and keeps a single resolved State, fanned out to subscribers.
//
// Every notification starts a resolution. Resolutions may overlap; a result
// is applied only if no newer notification was observed meanwhile, so the
// last observed event wins regardless of completion order.
type Watcher struct {
	source   Source
	resolver RoleResolver
	deviceID string
	logger   *slog.Logger
	out      *broadcast.MemoryBroadcaster[State]

	mu       sync.Mutex
	observed uint64
	state    State
	started  bool
	closed   bool
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDevice limits the watcher to events of one browser.
func WithDevice(deviceID string) WatcherOption {
	return func(w *Watcher) { w.deviceID = deviceID }
}

// WithWatcherLogger sets the watcher's logger; nil keeps the discard logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher returns an unstarted watcher in the anonymous state.
func NewWatcher(source Source, resolver RoleResolver, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:   source,
		resolver: resolver,
		logger:   logger.Discard(),
		out:      broadcast.NewMemoryBroadcaster[State](8),
		state:    State{Role: RoleAnonymous},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start subscribes to identity events, then fetches the current session and
// blocks until the initial role is applied. The watcher stops when ctx ends
// or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.started {
		w.mu.Unlock()
		return ErrWatcherStarted
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	sub := w.source.Events().Subscribe(ctx)

	gen := w.observe()
	id, err := w.source.CurrentSession(ctx, w.deviceID)
	if err != nil {
		_ = sub.Close()
		w.Close()
		return core.Wrap(err)
	}
	w.apply(gen, id, w.resolver.Resolve(ctx, id))

	w.wg.Add(1)
	go w.run(ctx, sub)
	return nil
}

func (w *Watcher) run(ctx context.Context, sub broadcast.Subscriber[identity.Event]) {
	defer w.wg.Done()
	defer func() { _ = sub.Close() }()

	// fresh is true while the current subscription has delivered nothing;
	// a fresh subscription closing means the source itself was closed.
	fresh := false
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Receive():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				if fresh {
					w.logger.WarnContext(ctx, "identity events closed, watcher stopped",
						logger.Component("session_watcher"))
					return
				}
				fresh = true
				// Dropped for falling behind: events may be lost, so
				// resubscribe and treat a fresh fetch as a notification.
				w.logger.WarnContext(ctx, "identity subscription dropped, resubscribing",
					logger.Component("session_watcher"))
				sub = w.source.Events().Subscribe(ctx)
				w.spawn(ctx, w.observe(), nil, true)
				continue
			}

			fresh = false
			ev := msg.Data
			if w.deviceID != "" && ev.DeviceID != w.deviceID {
				continue
			}
			gen := w.observe()
			w.logger.DebugContext(ctx, "session event observed",
				logger.Component("session_watcher"),
				logger.Event(string(ev.Kind)),
				logger.Seq(ev.Seq),
			)
			w.spawn(ctx, gen, ev.Identity, false)
		}
	}
}

func (w *Watcher) spawn(ctx context.Context, gen uint64, id *identity.Identity, refetch bool) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if refetch {
			cur, err := w.source.CurrentSession(ctx, w.deviceID)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.ErrorContext(ctx, "session refetch failed",
						logger.Component("session_watcher"),
						logger.Error(err),
					)
				}
				return
			}
			id = cur
		}
		w.apply(gen, id, w.resolver.Resolve(ctx, id))
	}()
}

func (w *Watcher) observe() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observed++
	return w.observed
}

func (w *Watcher) apply(gen uint64, id *identity.Identity, role Role) {
	w.mu.Lock()
	if w.closed || gen != w.observed {
		w.mu.Unlock()
		return
	}
	w.state = State{Seq: gen, Role: role, Identity: id}
	st := w.state
	// Publishing under the lock keeps subscriber order equal to Seq order.
	_ = w.out.Broadcast(context.Background(), broadcast.Message[State]{Data: st})
	w.mu.Unlock()
}

// Current returns the last applied state.
func (w *Watcher) Current() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe delivers every applied State until ctx ends or the watcher
// closes. Subscribe before reading Current to avoid missing a change.
func (w *Watcher) Subscribe(ctx context.Context) broadcast.Subscriber[State] {
	return w.out.Subscribe(ctx)
}

// Close releases the identity subscription and waits for in-flight
// resolutions. It is safe to call more than once.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		cancel := w.cancel
		w.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		w.wg.Wait()
		_ = w.out.Close()
	})
}
