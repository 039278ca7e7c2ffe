// Package positions implements the IPO position lifecycle: subscription,
// allotment, sale and the ledger postings that accompany each transition.
package positions

import (
	"fmt"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
)

// Repository persists positions under the "stocks" key
type Repository struct {
	store domain.RecordStore
	log   zerolog.Logger
}

// NewRepository creates a new position repository
func NewRepository(store domain.RecordStore, log zerolog.Logger) *Repository {
	return &Repository{
		store: store,
		log:   log.With().Str("repo", "positions").Logger(),
	}
}

// All returns every stored position
func (r *Repository) All() ([]domain.Position, error) {
	var positions []domain.Position
	if _, err := r.store.Get(domain.KeyStocks, &positions); err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return positions, nil
}

// GetByID returns the position with the given id
func (r *Repository) GetByID(id string) (*domain.Position, error) {
	positions, err := r.All()
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].ID == id {
			return &positions[i], nil
		}
	}
	return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
}

// Upsert replaces the position with the same id, or appends it
func (r *Repository) Upsert(p domain.Position) error {
	return r.UpsertMany([]domain.Position{p})
}

// UpsertMany writes several positions with a single document write
func (r *Repository) UpsertMany(updates []domain.Position) error {
	positions, err := r.All()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(positions))
	for i, p := range positions {
		index[p.ID] = i
	}
	for _, p := range updates {
		if i, ok := index[p.ID]; ok {
			positions[i] = p
			continue
		}
		index[p.ID] = len(positions)
		positions = append(positions, p)
	}

	if err := r.store.Set(domain.KeyStocks, positions); err != nil {
		return fmt.Errorf("failed to save positions: %w", err)
	}
	return nil
}
