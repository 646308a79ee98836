package handler

import "net/http"

type redirectResponse struct {
	url    string
	status int
}

// Render issues an HTTP redirect, or a DataStar redirect over SSE when the
// request came from a DataStar action.
func (rr redirectResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if IsDataStar(r) {
		return NewSSE(w, r).Redirect(rr.url)
	}
	http.Redirect(w, r, rr.url, rr.status)
	return nil
}

// Redirect responds 303 See Other.
func Redirect(url string) Response {
	return redirectResponse{url: url, status: http.StatusSeeOther}
}

func RedirectWithStatus(url string, status int) Response {
	return redirectResponse{url: url, status: status}
}
