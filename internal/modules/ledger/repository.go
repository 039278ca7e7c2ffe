// Package ledger implements the fund ledger: user cash movements plus the
// append-only business transaction log, replayed into a per-account balance.
package ledger

import (
	"fmt"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
)

// Repository reads and writes the three ledger documents in the record store.
// Every write replaces the whole document.
type Repository struct {
	store domain.RecordStore // accounts/fundRecords/businessTransactions/accountFunds keys
	log   zerolog.Logger
}

// NewRepository creates a new ledger repository.
//
// Parameters:
//   - store: Record store holding the ledger documents
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(store domain.RecordStore, log zerolog.Logger) *Repository {
	return &Repository{
		store: store,
		log:   log.With().Str("repo", "ledger").Logger(),
	}
}

// CashMovements returns every stored deposit and withdrawal.
// A missing document is an empty log, not an error.
func (r *Repository) CashMovements() ([]domain.CashMovement, error) {
	var records []domain.CashMovement
	if _, err := r.store.Get(domain.KeyFundRecords, &records); err != nil {
		return nil, fmt.Errorf("failed to load fund records: %w", err)
	}
	return records, nil
}

// SaveCashMovements replaces the cash movement log
func (r *Repository) SaveCashMovements(records []domain.CashMovement) error {
	if records == nil {
		records = []domain.CashMovement{}
	}
	if err := r.store.Set(domain.KeyFundRecords, records); err != nil {
		return fmt.Errorf("failed to save fund records: %w", err)
	}
	return nil
}

// BusinessTransactions returns the full business transaction log
func (r *Repository) BusinessTransactions() ([]domain.BusinessTransaction, error) {
	var txns []domain.BusinessTransaction
	if _, err := r.store.Get(domain.KeyBusinessTransactions, &txns); err != nil {
		return nil, fmt.Errorf("failed to load business transactions: %w", err)
	}
	return txns, nil
}

// AppendBusinessTransaction adds one posting to the end of the log
func (r *Repository) AppendBusinessTransaction(txn domain.BusinessTransaction) error {
	txns, err := r.BusinessTransactions()
	if err != nil {
		return err
	}

	txns = append(txns, txn)
	if err := r.store.Set(domain.KeyBusinessTransactions, txns); err != nil {
		return fmt.Errorf("failed to save business transactions: %w", err)
	}

	r.log.Debug().
		Str("txn_id", txn.ID).
		Str("type", string(txn.Type)).
		Str("account_id", txn.AccountID).
		Msg("Appended business transaction")
	return nil
}

// AllAccountFunds returns the cached funds of every account keyed by account id
func (r *Repository) AllAccountFunds() (map[string]domain.AccountFunds, error) {
	funds := make(map[string]domain.AccountFunds)
	if _, err := r.store.Get(domain.KeyAccountFunds, &funds); err != nil {
		return nil, fmt.Errorf("failed to load account funds: %w", err)
	}
	if funds == nil {
		funds = make(map[string]domain.AccountFunds)
	}
	return funds, nil
}

// SaveAccountFunds overwrites the cached funds of a single account
func (r *Repository) SaveAccountFunds(funds domain.AccountFunds) error {
	all, err := r.AllAccountFunds()
	if err != nil {
		return err
	}

	all[funds.AccountID] = funds
	if err := r.store.Set(domain.KeyAccountFunds, all); err != nil {
		return fmt.Errorf("failed to save account funds for %s: %w", funds.AccountID, err)
	}
	return nil
}
