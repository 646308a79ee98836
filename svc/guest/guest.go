// Package guest is the single source of truth for invited guests: identity,
// admin flag and RSVP state.
package guest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("guest: not found")
	ErrInvalidEmail = errors.New("guest: invalid email")
)

// Guest is one invited person. Nullable columns are pointers.
type Guest struct {
	ID                        uuid.UUID  `json:"id"`
	Email                     string     `json:"email"`
	Name                      *string    `json:"name"`
	IsAdmin                   bool       `json:"is_admin"`
	HasRSVPed                 bool       `json:"has_rsvped"`
	IsAttending               *bool      `json:"is_attending"`
	DietaryPreferences        *string    `json:"dietary_preferences"`
	AdditionalNotes           *string    `json:"additional_notes"`
	HasPlusOne                bool       `json:"has_plus_one"`
	PlusOneName               *string    `json:"plus_one_name"`
	PlusOneEmail              *string    `json:"plus_one_email"`
	PlusOneDietaryPreferences *string    `json:"plus_one_dietary_preferences"`
	CreatedAt                 time.Time  `json:"created_at"`
	RSVPCompletedAt           *time.Time `json:"rsvp_completed_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// DisplayName returns the name or "" when unset.
func (g Guest) DisplayName() string {
	if g.Name == nil {
		return ""
	}
	return *g.Name
}

// RSVPUpdate is the full set of RSVP columns written by one submission.
// The store writes the plus-one fields as given; callers clear them when
// HasPlusOne is false.
type RSVPUpdate struct {
	IsAttending               bool
	DietaryPreferences        *string
	HasPlusOne                bool
	PlusOneName               *string
	PlusOneEmail              *string
	PlusOneDietaryPreferences *string
	AdditionalNotes           *string
	CompletedAt               time.Time
}

// ProfileUpdate replaces the profile columns; nil stores NULL.
type ProfileUpdate struct {
	Name            *string
	AdditionalNotes *string
}

// Invitee is one entry of an imported invitation list. A nil IsAdmin leaves
// the flag of an existing row untouched.
type Invitee struct {
	Email   string `yaml:"email"`
	Name    string `yaml:"name"`
	IsAdmin *bool  `yaml:"admin"`
}

// Store is the guest table. Lookups return ErrNotFound for a missing row.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*Guest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Guest, error)
	List(ctx context.Context) ([]Guest, error)
	NamesByEmail(ctx context.Context, emails []string) (map[string]string, error)
	UpdateRSVP(ctx context.Context, id uuid.UUID, u RSVPUpdate) error
	UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) error
	Upsert(ctx context.Context, in Invitee) (*Guest, error)
}
