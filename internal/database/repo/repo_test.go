package repo

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// newTestDB opens an in-memory database and applies the trading schema
// from the sibling schemas directory, standing up a real schema against
// a fresh per-test in-memory database rather than hand-rolled per-test
// tables.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schemaPath := filepath.Join("..", "schemas", "trading_schema.sql")
	content, err := os.ReadFile(schemaPath)
	require.NoError(t, err)

	_, err = db.Exec(string(content))
	require.NoError(t, err)

	return db
}

func testLog() zerolog.Logger {
	return zerolog.Nop()
}
