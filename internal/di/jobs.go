package di

import (
	"fmt"

	"github.com/aristath/ipotracker/internal/config"
	"github.com/aristath/ipotracker/internal/reliability"
	"github.com/aristath/ipotracker/internal/scheduler"
	"github.com/rs/zerolog"
)

// Job schedules (six-field cron, seconds first)
const (
	scheduleRecomputeBalances   = "0 30 2 * * *" // 02:30 daily
	scheduleCheckLedgerDatabase = "0 0 4 * * *"  // 04:00 daily
	scheduleDiskSpace           = "@every 1h"
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the background jobs and adds them to the scheduler.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{
		RecomputeBalances:   scheduler.NewRecomputeBalancesJob(container.LedgerService, log),
		CheckLedgerDatabase: scheduler.NewCheckLedgerDatabaseJob(container.LedgerDB, log),
		DiskSpace:           reliability.NewDiskSpaceJob(cfg.DataDir, log),
	}

	schedules := []scheduledJob{
		{scheduleRecomputeBalances, instances.RecomputeBalances},
		{scheduleCheckLedgerDatabase, instances.CheckLedgerDatabase},
		{scheduleDiskSpace, instances.DiskSpace},
	}

	if container.BackupService.Enabled() {
		instances.Backup = reliability.NewBackupJob(container.BackupService, log)
		schedules = append(schedules, scheduledJob{cfg.Backup.Schedule, instances.Backup})
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Background jobs registered")
	return instances, nil
}
