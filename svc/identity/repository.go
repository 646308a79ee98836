package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rsvpkit/wedding/pkg/pg"
)

const sessionColumns = `id, email, device_id, refresh_token_hash, created_at,
	refreshed_at, expires_at, revoked_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	db pg.DBTX
}

// NewRepository returns a Store over db.
func NewRepository(db pg.DBTX) *Repository {
	return &Repository{db: db}
}

func scanSession(row pgx.Row) (*SessionRecord, error) {
	var r SessionRecord
	err := row.Scan(&r.ID, &r.Email, &r.DeviceID, &r.RefreshTokenHash,
		&r.CreatedAt, &r.RefreshedAt, &r.ExpiresAt, &r.RevokedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &r, nil
}

func (r *Repository) ConsumeSignInToken(ctx context.Context, id uuid.UUID, email string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sign_in_tokens (id, email, expires_at) VALUES ($1, $2, $3)`,
		id, email, expiresAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrTokenUsed
		}
		return fmt.Errorf("consume sign-in token: %w", err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_sessions (id, email, device_id, refresh_token_hash, created_at, refreshed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Email, rec.DeviceID, rec.RefreshTokenHash, rec.CreatedAt, rec.RefreshedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE id = $1`, id))
}

func (r *Repository) GetSessionByRefreshHash(ctx context.Context, hash []byte) (*SessionRecord, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE refresh_token_hash = $1`, hash))
}

func (r *Repository) LatestActiveSession(ctx context.Context, deviceID string, now time.Time) (*SessionRecord, error) {
	return scanSession(r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM auth_sessions
		WHERE device_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY refreshed_at DESC
		LIMIT 1`, deviceID, now))
}

// RotateRefreshToken swaps the hash only if oldHash is still current, so a
// refresh token can be exchanged once.
func (r *Repository) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash []byte, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE auth_sessions
		SET refresh_token_hash = $3, expires_at = $4, refreshed_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL`,
		id, oldHash, newHash, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repository) RevokeSession(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeDeviceSessions revokes every open session of one browser.
func (r *Repository) RevokeDeviceSessions(ctx context.Context, deviceID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = NOW() WHERE device_id = $1 AND revoked_at IS NULL`, deviceID)
	if err != nil {
		return fmt.Errorf("revoke device sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes expired sign-in tokens and expired or revoked sessions.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tokens, err := r.db.Exec(ctx, `DELETE FROM sign_in_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	sessions, err := r.db.Exec(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < $1 OR revoked_at < $1 - INTERVAL '1 day'`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tokens.RowsAffected() + sessions.RowsAffected(), nil
}
