package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/handler"
	"github.com/rsvpkit/wedding/pkg/qrcode"
	"github.com/rsvpkit/wedding/svc/dashboard"
	"github.com/rsvpkit/wedding/svc/dispatch"
	"github.com/rsvpkit/wedding/svc/session"
)

type adminSendRequest struct {
	Type     dispatch.Type      `json:"type"`
	Audience dashboard.Audience `json:"audience"`
}

type previewRequest struct {
	Type string `query:"type"`
	Name string `query:"name"`
}

type logsRequest struct {
	Limit int `query:"limit"`
}

type qrRequest struct {
	Size int `query:"size"`
}

type resultsResponse struct {
	Results []dispatch.Outcome `json:"results"`
}

type transportStatus struct {
	Configured bool   `json:"configured"`
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
}

func (rt *routes) adminRoutes(r chi.Router) {
	r.Use(session.RequireAdmin(rt.fail))

	if rt.deps.Dashboard != nil {
		r.Get("/guests", wrap(rt.guests, rt.errors))
		r.Post("/send", wrap(rt.adminSend, rt.errors, jsonBody))
	}
	if rt.deps.Dispatcher != nil {
		r.Get("/email/preview", wrap(rt.preview, rt.errors, queryArgs))
		r.Get("/email/status", wrap(rt.transportStatus, rt.errors))
	}
	if rt.deps.SendLog != nil {
		r.Get("/email/logs", wrap(rt.sendLog, rt.errors, queryArgs))
	}
	r.Get("/invite-qr.png", wrap(rt.inviteQR, rt.errors, queryArgs))
}

func (rt *routes) guests(ctx handler.Context, _ struct{}) handler.Response {
	ov, err := rt.deps.Dashboard.Overview(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(ov)
}

func (rt *routes) adminSend(ctx handler.Context, req adminSendRequest) handler.Response {
	outcomes, err := rt.deps.Dashboard.Send(ctx, session.FromContext(ctx).Identity, req.Type, req.Audience)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.RawJSON(resultsResponse{Results: outcomes})
}

// authorizeSend runs the dispatcher's admin check before the body is read,
// so a caller without access gets 401 whatever it sent.
func (rt *routes) authorizeSend(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := rt.deps.Dispatcher.Authorize(r.Context(), session.FromContext(r.Context()).Identity); err != nil {
			rt.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sendEmail is the bulk send API. It is not behind RequireAdmin: the
// dispatcher's own check gates it, before binding and again in Dispatch.
func (rt *routes) sendEmail(ctx handler.Context, req dispatch.Request) handler.Response {
	outcomes, err := rt.deps.Dispatcher.Dispatch(ctx, session.FromContext(ctx).Identity, req)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.RawJSON(resultsResponse{Results: outcomes})
}

func (rt *routes) preview(ctx handler.Context, req previewRequest) handler.Response {
	t := dispatch.Type(req.Type)
	if t == "" {
		t = dispatch.SaveTheDate
	}
	msg, err := rt.deps.Dispatcher.Preview(ctx, t, req.Name)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(msg)
}

func (rt *routes) transportStatus(ctx handler.Context, _ struct{}) handler.Response {
	err := rt.deps.Dispatcher.TransportStatus(ctx)
	st := transportStatus{
		Configured: core.KindOf(err) != core.KindServiceUnavailable,
		OK:         err == nil,
	}
	if err != nil {
		st.Message = core.Message(err)
	}
	return handler.JSON(st)
}

func (rt *routes) sendLog(ctx handler.Context, req logsRequest) handler.Response {
	entries, err := rt.deps.SendLog.Recent(ctx, req.Limit)
	if err != nil {
		return handler.Fail(core.Wrap(err))
	}
	return handler.JSON(entries)
}

// inviteQR renders the site link printed on paper invitations.
func (rt *routes) inviteQR(ctx handler.Context, req qrRequest) handler.Response {
	link, err := qrcode.InvitationLink(rt.cfg.SiteURL, "invitation")
	if err != nil {
		return handler.Fail(core.ServiceUnavailable("Site URL is not configured.", err))
	}
	png, err := qrcode.Generate(link, req.Size)
	if err != nil {
		return handler.Fail(core.Unknown(err))
	}
	return pngResponse(png)
}

type pngResponse []byte

func (p pngResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(p)
	return err
}
