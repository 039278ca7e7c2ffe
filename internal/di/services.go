package di

import (
	"context"
	"fmt"

	"github.com/aristath/ipotracker/internal/config"
	"github.com/aristath/ipotracker/internal/modules/accounts"
	"github.com/aristath/ipotracker/internal/modules/fees"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/aristath/ipotracker/internal/modules/positions"
	"github.com/aristath/ipotracker/internal/reliability"
	"github.com/aristath/ipotracker/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices builds the services in dependency order:
// accounts -> ledger -> fees -> positions -> backups
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.AccountService = accounts.NewService(container.AccountRepo, log)
	if _, err := container.AccountService.EnsureDefault(); err != nil {
		return fmt.Errorf("failed to create default account: %w", err)
	}

	container.LedgerService = ledger.NewService(container.LedgerRepo, container.AccountService, container.PositionRepo, log)
	container.FeeCalculator = fees.NewCalculator(fees.HongKong())
	container.PositionService = positions.NewService(
		container.PositionRepo,
		container.FeeCalculator,
		container.LedgerService,
		container.AccountService,
		log,
	)

	var objects reliability.ObjectStore
	prefix, retention := "", 0
	if cfg.Backup != nil {
		prefix, retention = cfg.Backup.Prefix, cfg.Backup.RetentionCount
		if cfg.Backup.Enabled {
			client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
			if err != nil {
				return fmt.Errorf("failed to create backup client: %w", err)
			}
			objects = client
		}
	}
	container.BackupService = reliability.NewBackupService(
		container.Store,
		objects,
		container.LedgerService,
		prefix,
		retention,
		log,
	)

	container.Scheduler = scheduler.New(log)

	log.Info().Bool("backups", container.BackupService.Enabled()).Msg("Services initialized")
	return nil
}
