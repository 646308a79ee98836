package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Email records an email address under "email".
func Email(addr string) slog.Attr {
	return slog.String("email", addr)
}

// GuestID records the guest identifier under "guest_id".
func GuestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("guest_id", id)
}

// Role records a role name under "role".
func Role(role any) slog.Attr {
	if role == nil {
		return slog.Attr{}
	}
	return slog.Any("role", role)
}

// RequestID records the request identifier under "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// MessageID records a transport message identifier under "message_id".
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// Seq records a notification sequence number under "seq".
func Seq(seq uint64) slog.Attr {
	return slog.Uint64("seq", seq)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Count(name string, n int) slog.Attr {
	return slog.Int(name, n)
}
