package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: "file::memory:?cache=shared", Name: "trading"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateAppliesTradingSchema(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate()) // idempotent: re-applying must not error

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'buy_orders'`).Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "buy_orders", name)
}

func TestMigrateSkipsUnknownDatabaseName(t *testing.T) {
	db, err := New(Config{Path: "file::memory:?cache=shared", Name: "unknown"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
}

func TestHealthCheckPassesOnFreshDatabase(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.HealthCheck(context.Background()))
}

func TestWALCheckpointRunsWithoutError(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.WALCheckpoint("PASSIVE"))
}
