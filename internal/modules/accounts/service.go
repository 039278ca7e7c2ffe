package accounts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service manages the account registry. Accounts are never deleted: the
// ledger and positions reference them by id.
type Service struct {
	repo *Repository
	log  zerolog.Logger
	now  func() time.Time
	mu   sync.Mutex
}

// NewService creates a new account service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "accounts").Logger(),
		now:  time.Now,
	}
}

// SetClock replaces the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// EnsureDefault creates the default account when the registry has none.
// Returns the default account either way.
func (s *Service) EnsureDefault() (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ensureDefault()
	if err != nil {
		return domain.Account{}, err
	}
	for _, a := range accounts {
		if a.IsDefault {
			return a, nil
		}
	}
	return accounts[0], nil
}

func (s *Service) ensureDefault() ([]domain.Account, error) {
	accounts, err := s.repo.All()
	if err != nil {
		return nil, err
	}
	if len(accounts) > 0 {
		return accounts, nil
	}

	def := domain.Account{
		ID:         domain.DefaultAccountID,
		Name:       domain.DefaultAccountName,
		IsDefault:  true,
		CreateTime: s.now(),
	}
	accounts = []domain.Account{def}
	if err := s.repo.Save(accounts); err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", def.ID).Msg("Created default account")
	return accounts, nil
}

// List returns every account, bootstrapping the default one on first use
func (s *Service) List() ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureDefault()
}

// Get returns the account with the given id
func (s *Service) Get(id string) (domain.Account, error) {
	accounts, err := s.List()
	if err != nil {
		return domain.Account{}, err
	}
	for _, a := range accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
}

// Create adds a named account. Names are unique (case-insensitive).
func (s *Service) Create(name string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("%w: account name is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ensureDefault()
	if err != nil {
		return domain.Account{}, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Name, name) {
			return domain.Account{}, fmt.Errorf("%w: account %q already exists", domain.ErrInvalidState, name)
		}
	}

	account := domain.Account{
		ID:         "account_" + uuid.NewString(),
		Name:       name,
		CreateTime: s.now(),
	}
	if err := s.repo.Save(append(accounts, account)); err != nil {
		return domain.Account{}, err
	}

	s.log.Info().Str("account_id", account.ID).Str("name", name).Msg("Created account")
	return account, nil
}

// Rename changes an account's display name
func (s *Service) Rename(id, name string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("%w: account name is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.ensureDefault()
	if err != nil {
		return domain.Account{}, err
	}

	idx := -1
	for i, a := range accounts {
		if a.ID == id {
			idx = i
			continue
		}
		if strings.EqualFold(a.Name, name) {
			return domain.Account{}, fmt.Errorf("%w: account %q already exists", domain.ErrInvalidState, name)
		}
	}
	if idx < 0 {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}

	accounts[idx].Name = name
	if err := s.repo.Save(accounts); err != nil {
		return domain.Account{}, err
	}
	return accounts[idx], nil
}
