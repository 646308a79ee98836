// Package testdb opens a migrated PostgreSQL pool for integration tests.
// Tests are skipped unless TEST_STORE_URL is set.
package testdb

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/db"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/pg"
)

var migrateOnce sync.Once

// Open connects to TEST_STORE_URL and migrates, or skips the test when unset.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_STORE_URL")
	if url == "" {
		t.Skip("TEST_STORE_URL not set")
	}

	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
		MigrationsTable:  "schema_migrations",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = pg.Migrate(ctx, pool, cfg, db.Migrations, db.Dir, logger.Discard())
	})
	require.NoError(t, migrateErr)

	return pool
}
