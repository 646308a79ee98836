package email_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "guest@example.com",
		Subject:  "Save the Date",
		BodyHTML: "<p>Dear Friend,</p>",
		BodyText: "Dear Friend,",
		Tag:      "save-the-date",
		Headers:  map[string]string{"List-Unsubscribe": "<mailto:hi@example.com?subject=Unsubscribe>"},
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(p *email.SendEmailParams)
		wantErr bool
	}{
		{"valid", func(*email.SendEmailParams) {}, false},
		{"text only", func(p *email.SendEmailParams) { p.BodyHTML = "" }, false},
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = " " }, true},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "nope" }, true},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = "" }, true},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML, p.BodyText = "", "" }, true},
		{"bad reply-to", func(p *email.SendEmailParams) { p.ReplyTo = "x" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, email.ErrInvalidParams)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewFromConfig(email.Config{Sender: "a@example.com"})
		assert.ErrorIs(t, err, email.ErrNotConfigured)
		assert.Nil(t, s)
	})

	t.Run("dev sender", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewFromConfig(email.Config{DevMailDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &email.DevSender{}, s)
	})

	t.Run("postmark", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewFromConfig(email.Config{PostmarkServerToken: "tok", Sender: "Us <us@example.com>"})
		require.NoError(t, err)
		assert.IsType(t, &email.PostmarkClient{}, s)
	})

	t.Run("postmark with invalid sender", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewFromConfig(email.Config{PostmarkServerToken: "tok", Sender: "nobody"})
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mail")
	sender := email.NewDevSender(dir)

	id, err := sender.SendEmail(context.Background(), validParams())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var metaFile string
	for _, e := range entries {
		assert.Contains(t, e.Name(), "save-the-date")
		if strings.HasSuffix(e.Name(), ".json") {
			metaFile = e.Name()
		}
	}
	require.NotEmpty(t, metaFile)

	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, id, meta["message_id"])
	assert.Equal(t, "guest@example.com", meta["send_to"])
	assert.NotNil(t, meta["headers"])

	require.NoError(t, sender.Ping(context.Background()))
}

func TestDevSender_InvalidParams(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := email.NewDevSender(dir).SendEmail(context.Background(), email.SendEmailParams{})
	assert.ErrorIs(t, err, email.ErrInvalidParams)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Postmark-Server-Token"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(string(body), "broken@example.com") {
			_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"inactive recipient"}`))
			return
		}
		_, _ = w.Write([]byte(`{"To":"guest@example.com","MessageID":"msg-1","ErrorCode":0,"Message":"OK"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := email.NewPostmarkClient(email.Config{
		PostmarkServerToken: "tok",
		Sender:              "Us <us@example.com>",
		ReplyTo:             "reply@example.com",
	}, email.WithBaseURL(srv.URL))
	require.NoError(t, err)

	id, err := client.SendEmail(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "reply@example.com", got["ReplyTo"])
	assert.Equal(t, "Dear Friend,", got["TextBody"])
	headers, ok := got["Headers"].([]any)
	require.True(t, ok)
	assert.Len(t, headers, 1)

	p := validParams()
	p.SendTo = "broken@example.com"
	_, err = client.SendEmail(context.Background(), p)
	assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
}
