package scheduler

import (
	"testing"

	"github.com/aristath/sentinel/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCheckDatabaseJobName(t *testing.T) {
	job := NewCheckDatabaseJob(nil, zerolog.Nop())
	require.Equal(t, "check_database", job.Name())
}

func TestCheckDatabaseJobSkipsWhenNil(t *testing.T) {
	job := NewCheckDatabaseJob(nil, zerolog.Nop())
	require.NoError(t, job.Run())
}

func TestCheckDatabaseJobPassesOnHealthyDatabase(t *testing.T) {
	db, err := database.New(database.Config{Path: "file::memory:?cache=shared", Name: "trading"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	job := NewCheckDatabaseJob(db, zerolog.Nop())
	require.NoError(t, job.Run())
}
