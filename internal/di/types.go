/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every service instance. It is created by Wire() and
 * handed to the HTTP server and the CLI.
 */
package di

import (
	"github.com/aristath/ipotracker/internal/database"
	"github.com/aristath/ipotracker/internal/modules/accounts"
	"github.com/aristath/ipotracker/internal/modules/fees"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/aristath/ipotracker/internal/modules/positions"
	"github.com/aristath/ipotracker/internal/recordstore"
	"github.com/aristath/ipotracker/internal/reliability"
	"github.com/aristath/ipotracker/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Database: one SQLite file (ledger.db) holding the keyed record store
 * - Repositories: typed views over the record store (accounts, ledger, positions)
 * - Services: accounts, fund manager, fee calculator, position lifecycle, backups
 * - Scheduler: cron jobs for balance recompute, database checks and backups
 */
type Container struct {
	// Database
	LedgerDB *database.DB
	Store    *recordstore.SQLiteStore

	// Repositories
	AccountRepo  *accounts.Repository
	LedgerRepo   *ledger.Repository
	PositionRepo *positions.Repository

	// Services
	AccountService  *accounts.Service
	LedgerService   *ledger.Service
	FeeCalculator   *fees.Calculator
	PositionService *positions.Service
	BackupService   *reliability.BackupService

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// Close releases the database. Safe to call on a partially built container.
func (c *Container) Close() error {
	if c == nil || c.LedgerDB == nil {
		return nil
	}
	return c.LedgerDB.Close()
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	RecomputeBalances   scheduler.Job
	CheckLedgerDatabase scheduler.Job
	DiskSpace           scheduler.Job
	Backup              scheduler.Job // nil when backups are disabled
}
