package handler

import (
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
)

const (
	DataStarAcceptHeader = "text/event-stream"
	DataStarQueryParam   = "datastar"
)

// IsDataStar reports whether the client expects server-sent events.
func IsDataStar(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), DataStarAcceptHeader) {
		return true
	}
	if r.URL.Query().Has(DataStarQueryParam) {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/x-datastar")
}

func NewSSE(w http.ResponseWriter, r *http.Request) *datastar.ServerSentEventGenerator {
	return datastar.NewSSE(w, r)
}
