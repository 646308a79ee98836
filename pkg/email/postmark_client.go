package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"sort"

	"github.com/mrz1836/postmark"
)

// PostmarkClient sends through the Postmark API.
type PostmarkClient struct {
	client *postmark.Client
	config Config
}

type PostmarkOption func(*postmark.Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(url string) PostmarkOption {
	return func(c *postmark.Client) { c.BaseURL = url }
}

func WithHTTPClient(hc *http.Client) PostmarkOption {
	return func(c *postmark.Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewPostmarkClient fails with ErrInvalidConfig without a server token or a valid sender.
func NewPostmarkClient(cfg Config, opts ...PostmarkOption) (*PostmarkClient, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(cfg.Sender); err != nil {
		return nil, fmt.Errorf("%w: Sender must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyTo != "" {
		if _, err := mail.ParseAddress(cfg.ReplyTo); err != nil {
			return nil, fmt.Errorf("%w: ReplyTo must be a valid email address", ErrInvalidConfig)
		}
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	for _, opt := range opts {
		opt(client)
	}
	return &PostmarkClient{client: client, config: cfg}, nil
}

// SendEmail sends one message through Postmark's transactional API.
// Link tracking stays off so unsubscribe and sign-in links are not rewritten.
func (c *PostmarkClient) SendEmail(ctx context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	replyTo := params.ReplyTo
	if replyTo == "" {
		replyTo = c.config.ReplyTo
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.Sender,
		ReplyTo:    replyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TextBody:   params.BodyText,
		Headers:    postmarkHeaders(params.Headers),
		TrackOpens: true,
	})
	if err != nil {
		return "", errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return "", errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return resp.MessageID, nil
}

// Ping verifies the server token by fetching the current server.
func (c *PostmarkClient) Ping(ctx context.Context) error {
	if _, err := c.client.GetCurrentServer(ctx); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}

func postmarkHeaders(h map[string]string) []postmark.Header {
	if len(h) == 0 {
		return nil
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]postmark.Header, 0, len(h))
	for _, name := range names {
		out = append(out, postmark.Header{Name: name, Value: h[name]})
	}
	return out
}
