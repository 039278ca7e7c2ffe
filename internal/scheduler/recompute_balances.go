package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
)

// BalanceRecomputer rebuilds every cached account balance from the logs
type BalanceRecomputer interface {
	RecomputeAll() (int, error)
}

// RecomputeBalancesJob periodically rebuilds the derived funds cache, so a
// cache left stale by an interrupted write heals on its own
type RecomputeBalancesJob struct {
	ledger BalanceRecomputer
	log    zerolog.Logger
}

// NewRecomputeBalancesJob creates a new RecomputeBalancesJob
func NewRecomputeBalancesJob(ledger BalanceRecomputer, log zerolog.Logger) *RecomputeBalancesJob {
	return &RecomputeBalancesJob{
		ledger: ledger,
		log:    log.With().Str("job", "recompute_balances").Logger(),
	}
}

// Name returns the job name
func (j *RecomputeBalancesJob) Name() string {
	return "recompute_balances"
}

// Run executes the job
func (j *RecomputeBalancesJob) Run() error {
	n, err := j.ledger.RecomputeAll()
	if err != nil {
		return fmt.Errorf("failed to recompute balances: %w", err)
	}
	j.log.Info().Int("accounts", n).Msg("Account balances recomputed")
	return nil
}
