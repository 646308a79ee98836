package dispatch

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type selects the message template.
type Type string

const (
	SaveTheDate Type = "save-the-date"
	Reminder    Type = "reminder"
)

func (t Type) Valid() bool { return t == SaveTheDate || t == Reminder }

var ErrClaimHeld = errors.New("dispatch: batch already in flight")

// Request is the body of a bulk send.
type Request struct {
	Type       Type     `json:"type"`
	Recipients []string `json:"recipients"`
}

// Outcome is the per-recipient result, in input order.
type Outcome struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LogEntry is one row of the send log.
type LogEntry struct {
	ID        int64     `json:"id"`
	BatchID   uuid.UUID `json:"batch_id"`
	Type      Type      `json:"type"`
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	SentBy    string    `json:"sent_by"`
	CreatedAt time.Time `json:"created_at"`
}
