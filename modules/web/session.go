package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/rsvpkit/wedding/handler"
	"github.com/rsvpkit/wedding/svc/session"
)

type sessionView struct {
	Role    session.Role `json:"role"`
	Email   string       `json:"email,omitempty"`
	Name    string       `json:"name,omitempty"`
	IsAdmin bool         `json:"is_admin"`
}

func (rt *routes) sessionRoutes(r chi.Router) {
	r.Get("/session", wrap(rt.currentSession, rt.errors))
	r.Get("/session/stream", wrap(rt.sessionStream, rt.errors))
}

func (rt *routes) currentSession(ctx handler.Context, _ struct{}) handler.Response {
	sc := session.FromContext(ctx)
	view := sessionView{Role: sc.Role, Email: sc.Email(), IsAdmin: sc.Role.IsAdmin()}
	if sc.Guest != nil {
		view.Name = sc.Guest.DisplayName()
	}
	return handler.JSON(view)
}

// sessionStream pushes the browser's session state as DataStar signals
// whenever it changes, for as long as the connection stays open.
func (rt *routes) sessionStream(ctx handler.Context, _ struct{}) handler.Response {
	deviceID := rt.ensureDevice(ctx.ResponseWriter(), ctx.Request())

	return handler.SSE(func(stream handler.StreamContext) error {
		w := session.NewWatcher(rt.deps.Identity, rt.deps.Resolver,
			session.WithDevice(deviceID),
			session.WithWatcherLogger(rt.log),
		)
		defer w.Close()

		sub := w.Subscribe(stream)
		if err := w.Start(stream); err != nil {
			return err
		}

		var sent uint64
		push := func(st session.State) error {
			if sent != 0 && st.Seq <= sent {
				return nil
			}
			sent = st.Seq
			return stream.SendSignals(map[string]any{"session": map[string]any{
				"role":  st.Role,
				"email": st.Email(),
				"seq":   st.Seq,
			}})
		}

		if err := push(w.Current()); err != nil {
			return err
		}
		for {
			select {
			case <-stream.Done():
				return nil
			case <-rt.deps.Done:
				return nil
			case msg, ok := <-sub.Receive():
				if !ok {
					return nil
				}
				if err := push(msg.Data); err != nil {
					return err
				}
			}
		}
	})
}
