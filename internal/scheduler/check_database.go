package scheduler

import (
	"context"
	"time"

	"github.com/aristath/sentinel/internal/database"
	"github.com/rs/zerolog"
)

// CheckDatabaseJob runs an integrity check and a passive WAL checkpoint
// against the single trading database this engine persists to.
type CheckDatabaseJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCheckDatabaseJob builds a CheckDatabaseJob.
func NewCheckDatabaseJob(db *database.DB, log zerolog.Logger) *CheckDatabaseJob {
	return &CheckDatabaseJob{db: db, log: log.With().Str("job", "check_database").Logger()}
}

// Name implements Job.
func (j *CheckDatabaseJob) Name() string { return "check_database" }

// Run implements Job.
func (j *CheckDatabaseJob) Run() error {
	if j.db == nil {
		j.log.Warn().Msg("database not initialized, skipping check")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("trading database integrity check failed")
		return err
	}

	if err := j.db.WALCheckpoint("PASSIVE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		return err
	}

	j.log.Debug().Msg("trading database integrity and WAL checkpoint OK")
	return nil
}
