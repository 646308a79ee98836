package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rsvpkit/wedding/pkg/pg"
)

// Recorder appends send outcomes to the send log.
type Recorder interface {
	Record(ctx context.Context, e LogEntry) error
}

// LogRepository is the PostgreSQL send log.
type LogRepository struct {
	db pg.DBTX
}

// NewLogRepository returns the email_logs repository over db.
func NewLogRepository(db pg.DBTX) *LogRepository {
	return &LogRepository{db: db}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Record appends one outcome.
func (r *LogRepository) Record(ctx context.Context, e LogEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_logs (batch_id, email_type, recipient, success, message_id, error, sent_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.BatchID, string(e.Type), e.Recipient, e.Success,
		nullIfEmpty(e.MessageID), nullIfEmpty(e.Error), e.SentBy,
	)
	if err != nil {
		return fmt.Errorf("record email log: %w", err)
	}
	return nil
}

func scanLogEntry(row pgx.CollectableRow) (LogEntry, error) {
	var e LogEntry
	var typ string
	err := row.Scan(&e.ID, &e.BatchID, &typ, &e.Recipient, &e.Success,
		&e.MessageID, &e.Error, &e.SentBy, &e.CreatedAt)
	e.Type = Type(typ)
	return e, err
}

// Recent returns the newest entries first.
func (r *LogRepository) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, batch_id, email_type, recipient, success,
			COALESCE(message_id, ''), COALESCE(error, ''), sent_by, created_at
		FROM email_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanLogEntry)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return entries, nil
}

// Batch returns the entries of one batch in send order.
func (r *LogRepository) Batch(ctx context.Context, batchID uuid.UUID) ([]LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, batch_id, email_type, recipient, success,
			COALESCE(message_id, ''), COALESCE(error, ''), sent_by, created_at
		FROM email_logs
		WHERE batch_id = $1
		ORDER BY id ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch logs: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanLogEntry)
	if err != nil {
		return nil, fmt.Errorf("list batch logs: %w", err)
	}
	return entries, nil
}
