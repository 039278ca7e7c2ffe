package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountLister supplies the account registry
type AccountLister interface {
	List() ([]domain.Account, error)
}

// PositionLookup resolves the position a posting refers to
type PositionLookup interface {
	GetByID(id string) (*domain.Position, error)
}

// CashMovementInput describes a deposit or withdrawal to record.
// Zero Currency means HKD, zero Status means completed, zero Datetime means now.
type CashMovementInput struct {
	AccountID   string
	Type        domain.CashMovementType
	Amount      decimal.Decimal
	Currency    domain.Currency
	Datetime    time.Time
	Status      domain.MovementStatus
	Description string
}

// CashMovementPatch lists the fields to change on an existing movement.
// Nil fields are left untouched.
type CashMovementPatch struct {
	Type        *domain.CashMovementType
	Amount      *decimal.Decimal
	Datetime    *time.Time
	Status      *domain.MovementStatus
	Description *string
}

// BusinessTransactionInput describes a posting to append.
// Zero Datetime means now.
type BusinessTransactionInput struct {
	AccountID    string
	Type         domain.TransactionType
	StockID      string
	StockName    string
	Amount       decimal.Decimal
	Fees         decimal.Decimal
	Description  string
	Datetime     time.Time
	BusinessDate *time.Time
}

// AccountSummary pairs an account with its cached funds
type AccountSummary struct {
	Account domain.Account      `json:"account"`
	Funds   domain.AccountFunds `json:"funds"`
}

// FundsSummary aggregates the cached funds of every account
type FundsSummary struct {
	TotalBalances  domain.Amounts   `json:"totalBalances"`
	TotalDeposit   domain.Amounts   `json:"totalDeposit"`
	TotalWithdraw  domain.Amounts   `json:"totalWithdraw"`
	AccountDetails []AccountSummary `json:"accountDetails"`
}

// Service is the fund manager. Mutations are serialized by mu, and every
// mutation ends by recomputing the affected account from the logs.
type Service struct {
	log      zerolog.Logger
	repo      *Repository
	accounts  AccountLister
	positions PositionLookup
	now       func() time.Time
	mu        sync.Mutex
}

// NewService creates a new ledger service
func NewService(repo *Repository, accounts AccountLister, positions PositionLookup, log zerolog.Logger) *Service {
	return &Service{
		log:       log.With().Str("service", "ledger").Logger(),
		repo:      repo,
		accounts:  accounts,
		positions: positions,
		now:       time.Now,
	}
}

// SetClock replaces the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func (s *Service) requireAccount(accountID string) error {
	if accountID == "" {
		return fmt.Errorf("%w: account id is required", domain.ErrNotFound)
	}
	accounts, err := s.accounts.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, a := range accounts {
		if a.ID == accountID {
			return nil
		}
	}
	return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
}

// requirePosition checks that a posting's stock belongs to its account
func (s *Service) requirePosition(accountID, stockID string) error {
	if stockID == "" {
		return nil
	}
	p, err := s.positions.GetByID(stockID)
	if err != nil {
		return err
	}
	if p.AccountID != accountID {
		return fmt.Errorf("%w: position %s belongs to account %s, not %s", domain.ErrInvalidInput, stockID, p.AccountID, accountID)
	}
	return nil
}

// checkAvailable rejects amount if it exceeds what movements and the posted
// transactions leave in the account. Callers hold s.mu.
func (s *Service) checkAvailable(accountID string, amount decimal.Decimal, currency domain.Currency, movements []domain.CashMovement) error {
	if currency == "" {
		currency = domain.CurrencyHKD
	}
	txns, err := s.repo.BusinessTransactions()
	if err != nil {
		return err
	}
	cached, err := s.GetAccountFunds(accountID)
	if err != nil {
		return err
	}

	funds := ComputeFunds(accountID, movements, txns)
	funds.FrozenAmount = cached.FrozenAmount

	available := funds.Available(currency)
	if amount.GreaterThan(available) {
		return &domain.InsufficientFundsError{
			Requested: domain.NewMoney(amount, currency),
			Available: domain.NewMoney(available, currency),
		}
	}
	return nil
}

func isCompletedWithdrawal(m domain.CashMovement) bool {
	return m.Type == domain.CashWithdraw && m.Status == domain.StatusCompleted
}

// AddCashMovement records a deposit or withdrawal and recomputes the account.
// A completed withdrawal must fit in the available balance.
func (s *Service) AddCashMovement(in CashMovementInput) (*domain.CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAccount(in.AccountID); err != nil {
		return nil, err
	}
	if _, err := domain.ParseCashMovementType(string(in.Type)); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: cash movement amount must be positive, got %s", domain.ErrInvalidAmount, in.Amount)
	}
	if in.Currency == "" {
		in.Currency = domain.CurrencyHKD
	}
	if err := in.Currency.Validate(); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.StatusCompleted
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}

	now := s.now()
	if in.Datetime.IsZero() {
		in.Datetime = now
	}

	record := domain.CashMovement{
		ID:          newID("fund"),
		AccountID:   in.AccountID,
		Type:        in.Type,
		Amount:      domain.RoundCents(in.Amount),
		Currency:    in.Currency,
		Datetime:    in.Datetime,
		Status:      in.Status,
		Description: in.Description,
		CreateTime:  now,
		Timestamp:   in.Datetime.UnixMilli(),
	}

	records, err := s.repo.CashMovements()
	if err != nil {
		return nil, err
	}
	if isCompletedWithdrawal(record) {
		if err := s.checkAvailable(record.AccountID, record.Amount, record.Currency, records); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SaveCashMovements(append(records, record)); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("id", record.ID).
		Str("account_id", record.AccountID).
		Str("type", string(record.Type)).
		Str("amount", record.Amount.String()).
		Msg("Recorded cash movement")

	if _, err := s.recompute(record.AccountID); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateCashMovement applies patch to the movement with the given id and
// recomputes its account. An update that takes more cash out as a completed
// withdrawal must fit in the balance left without the movement's previous
// effect.
func (s *Service) UpdateCashMovement(id string, patch CashMovementPatch) (*domain.CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.CashMovements()
	if err != nil {
		return nil, err
	}

	idx := indexOfMovement(records, id)
	if idx < 0 {
		return nil, fmt.Errorf("cash movement %s: %w", id, domain.ErrNotFound)
	}
	rec := records[idx]

	if patch.Type != nil {
		if _, err := domain.ParseCashMovementType(string(*patch.Type)); err != nil {
			return nil, err
		}
		rec.Type = *patch.Type
	}
	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: cash movement amount must be positive, got %s", domain.ErrInvalidAmount, *patch.Amount)
		}
		rec.Amount = domain.RoundCents(*patch.Amount)
	}
	if patch.Datetime != nil {
		rec.Datetime = *patch.Datetime
		rec.Timestamp = patch.Datetime.UnixMilli()
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *patch.Status)
		}
		rec.Status = *patch.Status
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	if isCompletedWithdrawal(rec) && CashEffect(rec).LessThan(CashEffect(records[idx])) {
		others := make([]domain.CashMovement, 0, len(records)-1)
		others = append(others, records[:idx]...)
		others = append(others, records[idx+1:]...)
		if err := s.checkAvailable(rec.AccountID, rec.Amount, rec.Currency, others); err != nil {
			return nil, err
		}
	}

	updated := s.now()
	rec.UpdateTime = &updated

	records[idx] = rec
	if err := s.repo.SaveCashMovements(records); err != nil {
		return nil, err
	}

	s.log.Debug().Str("id", id).Str("account_id", rec.AccountID).Msg("Updated cash movement")

	if _, err := s.recompute(rec.AccountID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteCashMovement removes a movement and recomputes its account
func (s *Service) DeleteCashMovement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.CashMovements()
	if err != nil {
		return err
	}

	idx := indexOfMovement(records, id)
	if idx < 0 {
		return fmt.Errorf("cash movement %s: %w", id, domain.ErrNotFound)
	}
	accountID := records[idx].AccountID

	records = append(records[:idx], records[idx+1:]...)
	if err := s.repo.SaveCashMovements(records); err != nil {
		return err
	}

	s.log.Debug().Str("id", id).Str("account_id", accountID).Msg("Deleted cash movement")

	_, err = s.recompute(accountID)
	return err
}

func indexOfMovement(records []domain.CashMovement, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// GetAccountFundRecords returns an account's cash movements, newest first
func (s *Service) GetAccountFundRecords(accountID string) ([]domain.CashMovement, error) {
	records, err := s.repo.CashMovements()
	if err != nil {
		return nil, err
	}

	out := make([]domain.CashMovement, 0)
	for _, r := range records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sortMovements(out)
	return out, nil
}

// GetAllFundRecords returns every cash movement, newest first
func (s *Service) GetAllFundRecords() ([]domain.CashMovement, error) {
	records, err := s.repo.CashMovements()
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.CashMovement{}
	}
	sortMovements(records)
	return records, nil
}

func sortMovements(records []domain.CashMovement) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}

// AddBusinessTransaction appends a posting to the log and recomputes the
// account. A posting with a stock id must name a position of the same account.
func (s *Service) AddBusinessTransaction(in BusinessTransactionInput) (*domain.BusinessTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAccount(in.AccountID); err != nil {
		return nil, err
	}
	if _, err := domain.ParseTransactionType(string(in.Type)); err != nil {
		return nil, err
	}
	if err := s.requirePosition(in.AccountID, in.StockID); err != nil {
		return nil, err
	}
	if in.Amount.IsNegative() || in.Fees.IsNegative() {
		return nil, fmt.Errorf("%w: amount and fees must not be negative", domain.ErrInvalidAmount)
	}

	now := s.now()
	if in.Datetime.IsZero() {
		in.Datetime = now
	}

	txn := domain.BusinessTransaction{
		ID:           newID("trans"),
		AccountID:    in.AccountID,
		Type:         in.Type,
		StockID:      in.StockID,
		StockName:    in.StockName,
		Amount:       domain.RoundCents(in.Amount),
		Fees:         domain.RoundCents(in.Fees),
		Description:  in.Description,
		Datetime:     in.Datetime,
		BusinessDate: in.BusinessDate,
		CreateTime:   now,
		Timestamp:    in.Datetime.UnixMilli(),
	}

	if err := s.repo.AppendBusinessTransaction(txn); err != nil {
		return nil, err
	}
	if _, err := s.recompute(txn.AccountID); err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetAccountBusinessTransactions returns an account's postings, newest first
func (s *Service) GetAccountBusinessTransactions(accountID string) ([]domain.BusinessTransaction, error) {
	txns, err := s.repo.BusinessTransactions()
	if err != nil {
		return nil, err
	}

	out := make([]domain.BusinessTransaction, 0)
	for _, t := range txns {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out, nil
}

// CashEffect is the signed balance effect of a movement. Only completed
// movements count.
func CashEffect(m domain.CashMovement) decimal.Decimal {
	if m.Status != domain.StatusCompleted {
		return decimal.Zero
	}
	switch m.Type {
	case domain.CashDeposit:
		return m.Amount
	case domain.CashWithdraw:
		return m.Amount.Neg()
	}
	return decimal.Zero
}

// Effect is the signed balance effect of a business transaction
func Effect(t domain.BusinessTransaction) decimal.Decimal {
	switch t.Type {
	case domain.TxSubscribe:
		return t.Amount.Add(t.Fees).Neg()
	case domain.TxAllot, domain.TxFeeDeduction, domain.TxSellRefund:
		return t.Amount.Neg()
	case domain.TxAllotRefund, domain.TxFeeRefund, domain.TxSell:
		return t.Amount
	}
	return decimal.Zero
}

// ComputeFunds replays both logs for one account. The result does not depend
// on the order of either slice.
func ComputeFunds(accountID string, movements []domain.CashMovement, txns []domain.BusinessTransaction) domain.AccountFunds {
	balance, deposited, withdrawn := decimal.Zero, decimal.Zero, decimal.Zero

	for _, m := range movements {
		if m.AccountID != accountID || m.Status != domain.StatusCompleted {
			continue
		}
		switch m.Type {
		case domain.CashDeposit:
			deposited = deposited.Add(m.Amount)
		case domain.CashWithdraw:
			withdrawn = withdrawn.Add(m.Amount)
		}
		balance = balance.Add(CashEffect(m))
	}

	for _, t := range txns {
		if t.AccountID == accountID {
			balance = balance.Add(Effect(t))
		}
	}

	funds := domain.NewAccountFunds(accountID)
	funds.Balances[domain.CurrencyHKD] = domain.RoundCents(balance)
	funds.TotalDeposit[domain.CurrencyHKD] = domain.RoundCents(deposited)
	funds.TotalWithdraw[domain.CurrencyHKD] = domain.RoundCents(withdrawn)
	return funds
}

// RecomputeAccountBalance rebuilds the funds cache of one account from the logs
func (s *Service) RecomputeAccountBalance(accountID string) (domain.AccountFunds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute(accountID)
}

func (s *Service) recompute(accountID string) (domain.AccountFunds, error) {
	movements, err := s.repo.CashMovements()
	if err != nil {
		return domain.AccountFunds{}, err
	}
	txns, err := s.repo.BusinessTransactions()
	if err != nil {
		return domain.AccountFunds{}, err
	}

	funds := ComputeFunds(accountID, movements, txns)
	funds.LastUpdateTime = s.now()

	if err := s.repo.SaveAccountFunds(funds); err != nil {
		return domain.AccountFunds{}, err
	}

	s.log.Debug().
		Str("account_id", accountID).
		Str("balance", funds.Balances.Get(domain.CurrencyHKD).String()).
		Msg("Recomputed account balance")
	return funds, nil
}

// RecomputeAll rebuilds the cache for every account known to the registry or
// referenced by either log. Returns the number of accounts recomputed.
func (s *Service) RecomputeAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{})

	accounts, err := s.accounts.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, a := range accounts {
		ids[a.ID] = struct{}{}
	}

	movements, err := s.repo.CashMovements()
	if err != nil {
		return 0, err
	}
	for _, m := range movements {
		ids[m.AccountID] = struct{}{}
	}

	txns, err := s.repo.BusinessTransactions()
	if err != nil {
		return 0, err
	}
	for _, t := range txns {
		ids[t.AccountID] = struct{}{}
	}

	for id := range ids {
		if _, err := s.recompute(id); err != nil {
			return 0, fmt.Errorf("failed to recompute %s: %w", id, err)
		}
	}

	s.log.Info().Int("accounts", len(ids)).Msg("Recomputed all account balances")
	return len(ids), nil
}

// GetAccountFunds returns the cached funds of an account, all-zero if the
// account has no activity yet.
func (s *Service) GetAccountFunds(accountID string) (domain.AccountFunds, error) {
	all, err := s.repo.AllAccountFunds()
	if err != nil {
		return domain.AccountFunds{}, err
	}

	funds, ok := all[accountID]
	if !ok {
		return domain.NewAccountFunds(accountID), nil
	}
	if funds.FrozenAmount == nil {
		funds.FrozenAmount = domain.ZeroAmounts()
	}
	return funds, nil
}

// GetFundsSummary totals the cached funds of every registered account
func (s *Service) GetFundsSummary() (*FundsSummary, error) {
	accounts, err := s.accounts.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	summary := &FundsSummary{
		TotalBalances:  domain.ZeroAmounts(),
		TotalDeposit:   domain.ZeroAmounts(),
		TotalWithdraw:  domain.ZeroAmounts(),
		AccountDetails: make([]AccountSummary, 0, len(accounts)),
	}

	hkd := domain.CurrencyHKD
	for _, a := range accounts {
		funds, err := s.GetAccountFunds(a.ID)
		if err != nil {
			return nil, err
		}

		summary.TotalBalances[hkd] = summary.TotalBalances[hkd].Add(funds.Balances.Get(hkd))
		summary.TotalDeposit[hkd] = summary.TotalDeposit[hkd].Add(funds.TotalDeposit.Get(hkd))
		summary.TotalWithdraw[hkd] = summary.TotalWithdraw[hkd].Add(funds.TotalWithdraw.Get(hkd))
		summary.AccountDetails = append(summary.AccountDetails, AccountSummary{Account: a, Funds: funds})
	}

	return summary, nil
}

// ValidateWithdrawal checks that amount can leave the account. It never
// clamps: an amount above balance minus frozen is rejected outright.
func (s *Service) ValidateWithdrawal(accountID string, amount decimal.Decimal, currency domain.Currency) error {
	if currency == "" {
		currency = domain.CurrencyHKD
	}
	if err := currency.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidAmount, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal amount must be positive, got %s", domain.ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	movements, err := s.repo.CashMovements()
	if err != nil {
		return err
	}
	return s.checkAvailable(accountID, amount, currency, movements)
}
