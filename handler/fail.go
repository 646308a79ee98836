package handler

import "net/http"

type failResponse struct {
	err error
}

func (f failResponse) Render(http.ResponseWriter, *http.Request) error {
	return f.err
}

// Fail hands err to the ErrorHandler, which logs and renders it.
// Use JSONError to render without logging.
func Fail(err error) Response {
	return failResponse{err: err}
}
