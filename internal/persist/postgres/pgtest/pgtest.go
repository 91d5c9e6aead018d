// Package pgtest starts throwaway PostgreSQL containers for integration tests.
package pgtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"sidas/internal/persist/postgres"
)

const (
	occurrenceCount = 2
	startUpTimeOut  = 120 * time.Second
)

// Start runs a postgres:16-alpine container, applies the schema, and returns
// an open connection plus its DSN. Both are released through t.Cleanup.
//
// Callers skip under -short before calling Start.
func Start(ctx context.Context, t *testing.T) (*sql.DB, string) {
	t.Helper()

	c, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("sidas_test"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(occurrenceCount).
				WithStartupTimeout(startUpTimeOut),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	require.NoError(t, postgres.Migrate(ctx, dsn), "failed to apply migrations")

	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err, "failed to open database")
	t.Cleanup(func() { _ = db.Close() })

	return db, dsn
}
