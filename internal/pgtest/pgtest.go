// Package pgtest provides a migrated Postgres pool for integration tests.
// Tests are skipped unless MEMBERKIT_TEST_PG_URL is set.
package pgtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/migrations"
	"github.com/dmitrymomot/memberkit/pkg/pg"
)

const EnvURL = "MEMBERKIT_TEST_PG_URL"

var tables = []string{
	"reminders", "application_forms", "legacy_subscriptions", "user_profiles",
	"group_members", "accounts", "positions", "transactions", "members", "plans",
}

// Pool connects, migrates and empties every memberkit table. Callers must not
// run tests that use it in parallel with each other.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("skipping postgres integration test: %s is not set", EnvURL)
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		MaxIdleConns:     1,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
		MigrationsDir:    ".",
		MigrationsTable:  "memberkit_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		t.Skipf("skipping postgres integration test: %v", err)
	}
	t.Cleanup(pool.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, log))

	_, err = pool.Exec(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE")
	require.NoError(t, err)
	return pool
}
