package rsvp

import (
	"time"

	"github.com/google/uuid"

	"github.com/rsvpkit/wedding/svc/guest"
)

// Attendance is the tri-state answer. A stored NULL is Undecided, never No.
type Attendance string

const (
	Undecided Attendance = "undecided"
	Yes       Attendance = "yes"
	No        Attendance = "no"
)

// AttendanceFrom maps a nullable is_attending column to Attendance.
func AttendanceFrom(v *bool) Attendance {
	switch {
	case v == nil:
		return Undecided
	case *v:
		return Yes
	default:
		return No
	}
}

// Form is the editable RSVP model. Empty strings stand for NULL.
type Form struct {
	IsAttending               Attendance `json:"is_attending"`
	DietaryPreferences        string     `json:"dietary_preferences"`
	HasPlusOne                bool       `json:"has_plus_one"`
	PlusOneName               string     `json:"plus_one_name"`
	PlusOneEmail              string     `json:"plus_one_email"`
	PlusOneDietaryPreferences string     `json:"plus_one_dietary_preferences"`
	AdditionalNotes           string     `json:"additional_notes"`
}

// ProfileForm is a partial update: nil fields keep their stored value,
// an empty string clears it.
type ProfileForm struct {
	Name            *string `json:"name,omitempty"`
	AdditionalNotes *string `json:"additional_notes,omitempty"`
}

// Result is a loaded guest row as the form sees it.
type Result struct {
	GuestID         uuid.UUID  `json:"guest_id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	IsAdmin         bool       `json:"is_admin"`
	HasRSVPed       bool       `json:"has_rsvped"`
	RSVPCompletedAt *time.Time `json:"rsvp_completed_at"`
	Form            Form       `json:"form"`
}

func resultFrom(g *guest.Guest) *Result {
	return &Result{
		GuestID:         g.ID,
		Email:           g.Email,
		Name:            g.DisplayName(),
		IsAdmin:         g.IsAdmin,
		HasRSVPed:       g.HasRSVPed,
		RSVPCompletedAt: g.RSVPCompletedAt,
		Form: Form{
			IsAttending:               AttendanceFrom(g.IsAttending),
			DietaryPreferences:        deref(g.DietaryPreferences),
			HasPlusOne:                g.HasPlusOne,
			PlusOneName:               deref(g.PlusOneName),
			PlusOneEmail:              deref(g.PlusOneEmail),
			PlusOneDietaryPreferences: deref(g.PlusOneDietaryPreferences),
			AdditionalNotes:           deref(g.AdditionalNotes),
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
