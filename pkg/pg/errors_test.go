package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505"}
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name     string
		err      error
		notFound bool
		dup      bool
		fk       bool
	}{
		{"nil", nil, false, false, false},
		{"no rows", pgx.ErrNoRows, true, false, false},
		{"wrapped no rows", fmt.Errorf("get guest: %w", pgx.ErrNoRows), true, false, false},
		{"duplicate key", dup, false, true, false},
		{"wrapped duplicate", errors.Join(errors.New("insert"), dup), false, true, false},
		{"foreign key", fk, false, false, true},
		{"other", errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.notFound, pg.IsNotFoundError(tt.err))
			assert.Equal(t, tt.dup, pg.IsDuplicateKeyError(tt.err))
			assert.Equal(t, tt.fk, pg.IsForeignKeyViolationError(tt.err))
		})
	}
}

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	require.ErrorIs(t, err, pg.ErrEmptyConnectionString)
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	require.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_NilFS(t *testing.T) {
	t.Parallel()

	err := pg.Migrate(context.Background(), nil, pg.Config{}, nil, ".", nil)
	require.ErrorIs(t, err, pg.ErrMigrationsNotProvided)
}
