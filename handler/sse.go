package handler

import (
	"encoding/json"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"
)

// StreamContext is a Context with an open event stream.
type StreamContext interface {
	Context
	// SendSignals patches frontend signals, e.g. {"session": {"role": "guest"}}.
	SendSignals(signals map[string]any) error
}

// SSEHandler runs for the lifetime of the connection.
type SSEHandler func(ctx StreamContext) error

type sseResponse struct {
	handler SSEHandler
}

func (s sseResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if !IsDataStar(r) {
		return ErrStreamingUnsupported
	}
	return s.handler(&streamContext{
		Context: NewContext(w, r),
		sse:     NewSSE(w, r),
	})
}

// SSE opens a DataStar event stream and runs h on it.
func SSE(h SSEHandler) Response {
	return sseResponse{handler: h}
}

type streamContext struct {
	Context
	sse *datastar.ServerSentEventGenerator
}

func (c *streamContext) SendSignals(signals map[string]any) error {
	data, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return c.sse.PatchSignals(data)
}
