package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/ipotracker/internal/database"
	"github.com/rs/zerolog"
)

// CheckLedgerDatabaseJob verifies the integrity of the ledger database and
// truncates its WAL
type CheckLedgerDatabaseJob struct {
	db      *database.DB
	timeout time.Duration
	log     zerolog.Logger
}

// NewCheckLedgerDatabaseJob creates a new CheckLedgerDatabaseJob
func NewCheckLedgerDatabaseJob(db *database.DB, log zerolog.Logger) *CheckLedgerDatabaseJob {
	return &CheckLedgerDatabaseJob{
		db:      db,
		timeout: 30 * time.Second,
		log:     log.With().Str("job", "check_ledger_database").Logger(),
	}
}

// Name returns the job name
func (j *CheckLedgerDatabaseJob) Name() string {
	return "check_ledger_database"
}

// Run executes the job. A failed integrity check is an error; a failed
// checkpoint is only logged.
func (j *CheckLedgerDatabaseJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Integrity check failed")
		return fmt.Errorf("integrity check failed for %s: %w", j.db.Name(), err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("WAL checkpoint failed")
	}

	stats, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats")
		return nil
	}

	j.log.Info().
		Str("database", j.db.Name()).
		Interface("stats", stats).
		Msg("Ledger database healthy")
	return nil
}
