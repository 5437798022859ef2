// Package repo provides the repository layer over the trading database:
// pre/intraday scan history, buy/sell order records, daily summaries, and
// tuning metrics. Follows a shared Base/embedding pattern with plain
// database/sql queries and fmt.Errorf-wrapped errors throughout.
package repo

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// Base provides the shared *sql.DB handle and a component-scoped logger
// to every concrete repository.
type Base struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBase builds a Base scoped to the given repo name for logging.
func NewBase(db *sql.DB, name string, log zerolog.Logger) Base {
	return Base{db: db, log: log.With().Str("repo", name).Logger()}
}

// DB returns the underlying connection.
func (b Base) DB() *sql.DB {
	return b.db
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat64(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
