package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/rsvpkit/wedding/pkg/email/templates"
)

const (
	weddingDate  = "October 4th, 2025"
	venueName    = "Penny Roma"
	venueAddress = "3000 20th St, San Francisco, CA 94110"
)

var subjects = map[Type]string{
	SaveTheDate: "Save the Date - Yishan & Yitong Wedding",
	Reminder:    "RSVP Reminder - Yishan & Yitong Wedding",
}

// Message is a rendered email.
type Message struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Greeting personalizes the salutation; an empty name gets the generic one.
func Greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Dear Friend,"
	}
	return "Dear " + name + ","
}

// Render builds the subject, HTML and plain-text bodies for one recipient.
func Render(ctx context.Context, t Type, name, siteURL string) (Message, error) {
	subject, ok := subjects[t]
	if !ok {
		return Message{}, fmt.Errorf("dispatch: unknown message type %q", t)
	}
	greeting := Greeting(name)

	var body templ.Component
	var text string
	switch t {
	case SaveTheDate:
		body = saveTheDateEmail(greeting, siteURL)
		text = "Save the Date\n\n" + greeting + "\n\n" +
			"Yishan and Yitong warmly invite you to our wedding celebration in San Francisco on " + weddingDate + "\n\n" +
			"Venue: " + venueName + "\nAddress: 3000 20th St, SF, CA\n\n" +
			"RSVP at: " + siteURL + "\n\nMore info coming soon!"
	case Reminder:
		body = reminderEmail(greeting, siteURL)
		text = "RSVP Reminder\n\n" + greeting + "\n\n" +
			"We hope you're as excited as we are about our upcoming wedding!\n\n" +
			"Yishan & Yitong\nDate: " + weddingDate + "\nVenue: " + venueName + "\nAddress: " + venueAddress + "\n\n" +
			"We haven't received your RSVP yet, and we'd love to know if you can join us! " +
			"Please visit our wedding website to let us know if you'll be attending.\n\n" +
			"RSVP at: " + siteURL + "\n\n" +
			"If you have any questions, please don't hesitate to reach out to us.\n\n" +
			"Looking forward to celebrating with you!\nYishan & Yitong"
	}

	html, err := templates.Render(ctx, body)
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html, Text: text}, nil
}
