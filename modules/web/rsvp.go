package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/rsvpkit/wedding/handler"
	"github.com/rsvpkit/wedding/svc/rsvp"
	"github.com/rsvpkit/wedding/svc/session"
)

func (rt *routes) rsvpRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(session.RequireGuest(rt.fail))
		r.Get("/rsvp", wrap(rt.loadRSVP, rt.errors))
		r.Put("/rsvp", wrap(rt.submitRSVP, rt.errors, jsonBody))
		r.Patch("/profile", wrap(rt.updateProfile, rt.errors, jsonBody))
	})
}

func (rt *routes) loadRSVP(ctx handler.Context, _ struct{}) handler.Response {
	sc := session.FromContext(ctx)
	res, err := rt.deps.RSVP.Load(ctx, sc.Email())
	if err != nil {
		return handler.Fail(err)
	}
	if sc.Role.IsAdmin() {
		return handler.JSON(res, handler.WithJSONMeta(map[string]any{"redirect": "/admin"}))
	}
	return handler.JSON(res)
}

func (rt *routes) submitRSVP(ctx handler.Context, f rsvp.Form) handler.Response {
	res, err := rt.deps.RSVP.Submit(ctx, session.FromContext(ctx).Email(), f)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(res)
}

func (rt *routes) updateProfile(ctx handler.Context, f rsvp.ProfileForm) handler.Response {
	res, err := rt.deps.RSVP.UpdateProfile(ctx, session.FromContext(ctx).Email(), f)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(res)
}
