package guest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rsvpkit/wedding/pkg/pg"
)

const guestColumns = `id, email, name, is_admin, has_rsvped, is_attending,
	dietary_preferences, additional_notes, has_plus_one, plus_one_name,
	plus_one_email, plus_one_dietary_preferences, created_at,
	rsvp_completed_at, updated_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	db pg.DBTX
}

// NewRepository returns a Store over db.
func NewRepository(db pg.DBTX) *Repository {
	return &Repository{db: db}
}

func scanGuest(row pgx.Row) (*Guest, error) {
	var g Guest
	err := row.Scan(
		&g.ID, &g.Email, &g.Name, &g.IsAdmin, &g.HasRSVPed, &g.IsAttending,
		&g.DietaryPreferences, &g.AdditionalNotes, &g.HasPlusOne, &g.PlusOneName,
		&g.PlusOneEmail, &g.PlusOneDietaryPreferences, &g.CreatedAt,
		&g.RSVPCompletedAt, &g.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// GetByEmail matches the email exactly.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Guest, error) {
	g, err := scanGuest(r.db.QueryRow(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE email = $1`, email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get guest by email: %w", err)
	}
	return g, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Guest, error) {
	g, err := scanGuest(r.db.QueryRow(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get guest by id: %w", err)
	}
	return g, err
}

// List returns every guest, oldest first.
func (r *Repository) List(ctx context.Context) ([]Guest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+guestColumns+` FROM guests ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	guests, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Guest, error) {
		g, err := scanGuest(row)
		if err != nil {
			return Guest{}, err
		}
		return *g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return guests, nil
}

func (r *Repository) NamesByEmail(ctx context.Context, emails []string) (map[string]string, error) {
	names := make(map[string]string, len(emails))
	if len(emails) == 0 {
		return names, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT email, name FROM guests WHERE email = ANY($1) AND name IS NOT NULL`, emails)
	if err != nil {
		return nil, fmt.Errorf("names by email: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var email, name string
		if err := rows.Scan(&email, &name); err != nil {
			return nil, fmt.Errorf("names by email: %w", err)
		}
		if strings.TrimSpace(name) != "" {
			names[email] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("names by email: %w", err)
	}
	return names, nil
}

// UpdateRSVP writes the whole RSVP in one statement and marks the row as answered.
func (r *Repository) UpdateRSVP(ctx context.Context, id uuid.UUID, u RSVPUpdate) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE guests SET
			has_rsvped = TRUE,
			is_attending = $2,
			dietary_preferences = $3,
			has_plus_one = $4,
			plus_one_name = $5,
			plus_one_email = $6,
			plus_one_dietary_preferences = $7,
			additional_notes = $8,
			rsvp_completed_at = $9,
			updated_at = $9
		WHERE id = $1`,
		id, u.IsAttending, u.DietaryPreferences, u.HasPlusOne, u.PlusOneName,
		u.PlusOneEmail, u.PlusOneDietaryPreferences, u.AdditionalNotes, u.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update rsvp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE guests SET name = $2, additional_notes = $3, updated_at = NOW()
		WHERE id = $1`,
		id, u.Name, u.AdditionalNotes,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert inserts an invitee or refreshes the name of an existing row.
// is_admin changes only when the invitee sets it explicitly.
func (r *Repository) Upsert(ctx context.Context, in Invitee) (*Guest, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, ErrInvalidEmail
	}
	var name *string
	if n := strings.TrimSpace(in.Name); n != "" {
		name = &n
	}
	g, err := scanGuest(r.db.QueryRow(ctx, `
		INSERT INTO guests (email, name, is_admin)
		VALUES ($1, $2, COALESCE($3, FALSE))
		ON CONFLICT (email) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, guests.name),
			is_admin = COALESCE($3, guests.is_admin),
			updated_at = NOW()
		RETURNING `+guestColumns,
		in.Email, name, in.IsAdmin,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert guest: %w", err)
	}
	return g, nil
}
