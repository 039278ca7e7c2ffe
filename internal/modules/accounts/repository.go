// Package accounts keeps the registry of brokerage accounts positions and
// cash movements belong to.
package accounts

import (
	"fmt"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
)

// Repository persists the account list under the "accounts" key
type Repository struct {
	store domain.RecordStore
	log   zerolog.Logger
}

// NewRepository creates a new account repository
func NewRepository(store domain.RecordStore, log zerolog.Logger) *Repository {
	return &Repository{
		store: store,
		log:   log.With().Str("repo", "accounts").Logger(),
	}
}

// All returns the stored accounts in insertion order
func (r *Repository) All() ([]domain.Account, error) {
	var accounts []domain.Account
	if _, err := r.store.Get(domain.KeyAccounts, &accounts); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	return accounts, nil
}

// Save replaces the account list
func (r *Repository) Save(accounts []domain.Account) error {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	if err := r.store.Set(domain.KeyAccounts, accounts); err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}
	return nil
}
