package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender saves messages to a directory instead of sending them.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender writes each message as a file under dir.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type emailMetadata struct {
	MessageID string            `json:"message_id"`
	Timestamp string            `json:"timestamp"`
	SendTo    string            `json:"send_to"`
	Subject   string            `json:"subject"`
	Tag       string            `json:"tag,omitempty"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// SendEmail writes <timestamp>_<tag>_<id>.html, .txt and .json files.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	now := d.now()
	id := uuid.NewString()

	identifier := params.Tag
	if identifier == "" {
		identifier = params.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), id[:8])

	if params.BodyHTML != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(params.BodyHTML), 0o644); err != nil {
			return "", fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSendEmail, err)
		}
	}
	if params.BodyText != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".txt"), []byte(params.BodyText), 0o644); err != nil {
			return "", fmt.Errorf("%w: failed to write text file: %v", ErrFailedToSendEmail, err)
		}
	}

	data, err := json.MarshalIndent(emailMetadata{
		MessageID: id,
		Timestamp: now.Format(time.RFC3339),
		SendTo:    params.SendTo,
		Subject:   params.Subject,
		Tag:       params.Tag,
		ReplyTo:   params.ReplyTo,
		Headers:   params.Headers,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal metadata: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSendEmail, err)
	}

	return id, nil
}

// Ping checks that the output directory is writable.
func (d *DevSender) Ping(context.Context) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")
	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
