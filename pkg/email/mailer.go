package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Sender delivers a single message and returns the transport's message id.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) (string, error)
}

// Pinger is implemented by transports that can verify their credentials.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string            `json:"send_to"`
	Subject  string            `json:"subject"`
	BodyHTML string            `json:"body_html"`
	BodyText string            `json:"body_text,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	ReplyTo  string            `json:"reply_to,omitempty"` // overrides Config.ReplyTo
	Headers  map[string]string `json:"headers,omitempty"`
}

func (p SendEmailParams) Validate() error {
	if strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	}
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return fmt.Errorf("%w: recipient is not a valid address", ErrInvalidParams)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" && p.BodyText == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	if p.ReplyTo != "" {
		if _, err := mail.ParseAddress(p.ReplyTo); err != nil {
			return fmt.Errorf("%w: reply-to is not a valid address", ErrInvalidParams)
		}
	}
	return nil
}
