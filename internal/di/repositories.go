package di

import (
	"fmt"

	"github.com/aristath/ipotracker/internal/modules/accounts"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/aristath/ipotracker/internal/modules/positions"
	"github.com/aristath/ipotracker/internal/recordstore"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the record store, brings stored documents up
// to the current schema and builds the typed repositories over it.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	store := recordstore.NewSQLiteStore(container.LedgerDB.Conn(), log)
	if err := recordstore.Migrate(store, log); err != nil {
		return fmt.Errorf("failed to migrate records: %w", err)
	}
	container.Store = store

	container.AccountRepo = accounts.NewRepository(store, log)
	container.LedgerRepo = ledger.NewRepository(store, log)
	container.PositionRepo = positions.NewRepository(store, log)

	log.Info().Msg("Repositories initialized")
	return nil
}
