package positions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/modules/fees"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// repostDelay orders the new postings after the reversals they replace
const repostDelay = 100 * time.Millisecond

// LedgerPoster appends business transactions to the fund ledger
type LedgerPoster interface {
	AddBusinessTransaction(in ledger.BusinessTransactionInput) (*domain.BusinessTransaction, error)
}

// AccountLookup resolves account ids
type AccountLookup interface {
	Get(id string) (domain.Account, error)
}

// CreateInput describes a new subscription.
// Zero BoardLot means 100 shares per hand, zero SubscribedAt means now.
type CreateInput struct {
	AccountID         string
	StockName         string
	StockCode         string
	IssuePrice        decimal.Decimal
	PackageFee        decimal.Decimal
	SubscriptionHands int64
	BoardLot          int64
	SubscribedAt      time.Time
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	AccountID string
	Status    domain.PositionStatus
}

// Service runs the position state machine. Every allotment or sale write is
// followed by the ledger postings that keep the account balance in step; an
// amendment first reverses the postings of the values it replaces.
type Service struct {
	repo     *Repository
	fees     *fees.Calculator
	ledger   LedgerPoster
	accounts AccountLookup
	log      zerolog.Logger
	now      func() time.Time
	mu       sync.Mutex
}

// NewService creates a new position service
func NewService(repo *Repository, calc *fees.Calculator, poster LedgerPoster, accounts AccountLookup, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		fees:     calc,
		ledger:   poster,
		accounts: accounts,
		log:      log.With().Str("service", "positions").Logger(),
		now:      time.Now,
	}
}

// SetClock replaces the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreatePosition records a subscription. No ledger transaction is posted:
// cash only moves when the allotment result is recorded.
func (s *Service) CreatePosition(in CreateInput) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.newPosition(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(*p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("position_id", p.ID).
		Str("account_id", p.AccountID).
		Str("stock", p.StockName).
		Int64("hands", p.SubscriptionHands).
		Msg("Created position")
	return p, nil
}

func (s *Service) newPosition(in CreateInput) (*domain.Position, error) {
	if _, err := s.accounts.Get(in.AccountID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.StockName)
	if name == "" {
		return nil, fmt.Errorf("%w: stock name is required", domain.ErrInvalidInput)
	}
	if !in.IssuePrice.IsPositive() {
		return nil, fmt.Errorf("%w: issue price must be positive, got %s", domain.ErrInvalidAmount, in.IssuePrice)
	}
	if in.PackageFee.IsNegative() {
		return nil, fmt.Errorf("%w: package fee must not be negative, got %s", domain.ErrInvalidAmount, in.PackageFee)
	}
	if in.SubscriptionHands <= 0 {
		return nil, fmt.Errorf("%w: subscription hands must be positive, got %d", domain.ErrInvalidAmount, in.SubscriptionHands)
	}
	if in.BoardLot < 0 {
		return nil, fmt.Errorf("%w: board lot must not be negative, got %d", domain.ErrInvalidAmount, in.BoardLot)
	}
	if in.BoardLot == 0 {
		in.BoardLot = domain.DefaultBoardLot
	}

	created := in.SubscribedAt
	if created.IsZero() {
		created = s.now()
	}

	return &domain.Position{
		ID:                "stock_" + uuid.NewString(),
		AccountID:         in.AccountID,
		StockName:         name,
		StockCode:         strings.TrimSpace(in.StockCode),
		IssuePrice:        in.IssuePrice,
		PackageFee:        domain.RoundCents(in.PackageFee),
		SubscriptionHands: in.SubscriptionHands,
		BoardLot:          in.BoardLot,
		Status:            domain.PositionOngoing,
		CreateTime:        created,
	}, nil
}

// Get returns a position by id
func (s *Service) Get(id string) (*domain.Position, error) {
	return s.repo.GetByID(id)
}

// List returns the positions matching filter, newest subscription first
func (s *Service) List(filter ListFilter) ([]domain.Position, error) {
	all, err := s.repo.All()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Position, 0, len(all))
	for _, p := range all {
		if filter.AccountID != "" && p.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreateTime.After(out[j].CreateTime)
	})
	return out, nil
}

// posting is one pending ledger entry for a position
type posting struct {
	typ          domain.TransactionType
	amount       decimal.Decimal
	datetime     time.Time
	businessDate time.Time
	description  string
}

// post sends the postings in order. Zero amounts are skipped. The first
// failure stops the sequence and comes back as a ReconciliationWarning since
// the position itself has already been written.
func (s *Service) post(p *domain.Position, postings []posting) error {
	for _, e := range postings {
		if e.amount.IsZero() {
			continue
		}

		businessDate := e.businessDate
		_, err := s.ledger.AddBusinessTransaction(ledger.BusinessTransactionInput{
			AccountID:    p.AccountID,
			Type:         e.typ,
			StockID:      p.ID,
			StockName:    p.StockName,
			Amount:       e.amount,
			Description:  e.description,
			Datetime:     e.datetime,
			BusinessDate: &businessDate,
		})
		if err != nil {
			s.log.Error().
				Err(err).
				Str("position_id", p.ID).
				Str("type", string(e.typ)).
				Str("amount", e.amount.String()).
				Msg("Ledger posting failed after position write")
			return &domain.ReconciliationWarning{PositionID: p.ID, Posting: e.typ, Err: err}
		}
	}
	return nil
}

// recordedAllotmentFees returns the fees stored with the allotment. Positions
// written without fee details get them recomputed from the schedule.
func (s *Service) recordedAllotmentFees(p *domain.Position) domain.AllotmentFees {
	if p.WinningFeeDetails != nil {
		return *p.WinningFeeDetails
	}
	return s.fees.ComputeAllotmentFees(p.WinningShares, p.IssuePrice, p.PackageFee)
}

// recordedSaleFees is recordedAllotmentFees for the sale
func (s *Service) recordedSaleFees(p *domain.Position) domain.SaleFees {
	if p.SellFeeDetails != nil {
		return *p.SellFeeDetails
	}
	return s.fees.ComputeSaleFees(p.SellShares, p.SellPrice)
}

func requireOngoing(p *domain.Position) error {
	if p.Status == domain.PositionFinished {
		return fmt.Errorf("position %s is finished: %w", p.ID, domain.ErrInvalidState)
	}
	return nil
}

// RecordAllotment records (or amends) the number of shares won. The
// allotment principal and fees are debited from the account; an amendment
// first refunds the previous principal and fees.
//
// A non-nil *domain.ReconciliationWarning means the position was saved but
// the ledger is out of step; the returned position is still valid.
func (s *Service) RecordAllotment(positionID string, shares int64, date time.Time) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.repo.GetByID(positionID)
	if err != nil {
		return nil, err
	}
	if err := requireOngoing(p); err != nil {
		return nil, err
	}
	if shares < 0 {
		return nil, fmt.Errorf("%w: allotted shares must not be negative, got %d", domain.ErrInvalidAmount, shares)
	}
	if limit := p.SubscribedShares(); shares > limit {
		return nil, fmt.Errorf("%w: allotted %d shares exceeds the %d subscribed", domain.ErrInvalidAmount, shares, limit)
	}
	if p.Sold() && shares < p.SellShares {
		return nil, fmt.Errorf("%w: %d shares already sold", domain.ErrInvalidState, p.SellShares)
	}

	now := s.now()
	if date.IsZero() {
		date = now
	}

	var postings []posting
	if p.Allotted() {
		oldDate := *p.WinningTime
		postings = append(postings,
			posting{domain.TxAllotRefund, p.AllotmentPrincipal(), now, oldDate, fmt.Sprintf("Reverse allotment %s %d shares", p.StockName, p.WinningShares)},
			posting{domain.TxFeeRefund, s.recordedAllotmentFees(p).TotalFee, now, oldDate, fmt.Sprintf("Reverse allotment fees %s", p.StockName)},
		)
	}

	allotmentFees := s.fees.ComputeAllotmentFees(shares, p.IssuePrice, p.PackageFee)
	p.WinningShares = shares
	p.WinningTime = &date
	p.WinningFeeDetails = &allotmentFees
	p.UpdateTime = &now
	if p.Sold() {
		profit, rate := SaleProfit(p)
		p.Profit = decimal.NewNullDecimal(profit)
		p.ProfitRate = decimal.NewNullDecimal(rate)
	}

	repost := now.Add(repostDelay)
	postings = append(postings,
		posting{domain.TxAllot, p.AllotmentPrincipal(), repost, date, fmt.Sprintf("Allotment %s %d shares", p.StockName, shares)},
		posting{domain.TxFeeDeduction, allotmentFees.TotalFee, repost, date, fmt.Sprintf("Allotment fees %s", p.StockName)},
	)

	if err := s.repo.Upsert(*p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("position_id", p.ID).
		Int64("shares", shares).
		Str("fees", allotmentFees.TotalFee.String()).
		Msg("Recorded allotment")

	return p, s.post(p, postings)
}

// RecordSale records (or amends) the sale of allotted shares and the
// resulting profit. Proceeds are credited and sale fees debited; an
// amendment first reverses the previous proceeds and fees.
//
// Like RecordAllotment it may return the saved position together with a
// *domain.ReconciliationWarning.
func (s *Service) RecordSale(positionID string, price decimal.Decimal, shares int64, date time.Time) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.repo.GetByID(positionID)
	if err != nil {
		return nil, err
	}
	if err := requireOngoing(p); err != nil {
		return nil, err
	}
	if !p.Allotted() || p.WinningShares == 0 {
		return nil, fmt.Errorf("position %s has no allotted shares to sell: %w", p.ID, domain.ErrInvalidState)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: sell price must be positive, got %s", domain.ErrInvalidAmount, price)
	}
	if shares <= 0 || shares > p.WinningShares {
		return nil, fmt.Errorf("%w: sell shares must be between 1 and %d, got %d", domain.ErrInvalidAmount, p.WinningShares, shares)
	}

	now := s.now()
	if date.IsZero() {
		date = now
	}

	var postings []posting
	if p.Sold() {
		oldDate := *p.SellTime
		postings = append(postings,
			posting{domain.TxSellRefund, p.SaleProceeds(), now, oldDate, fmt.Sprintf("Reverse sale %s %d shares", p.StockName, p.SellShares)},
			posting{domain.TxFeeRefund, s.recordedSaleFees(p).TotalFee, now, oldDate, fmt.Sprintf("Reverse sale fees %s", p.StockName)},
		)
	}
	if p.WinningFeeDetails == nil {
		allotmentFees := s.recordedAllotmentFees(p)
		p.WinningFeeDetails = &allotmentFees
	}

	saleFees := s.fees.ComputeSaleFees(shares, price)
	p.SellPrice = price
	p.SellShares = shares
	p.SellTime = &date
	p.SellFeeDetails = &saleFees
	p.UpdateTime = &now

	profit, rate := SaleProfit(p)
	p.Profit = decimal.NewNullDecimal(profit)
	p.ProfitRate = decimal.NewNullDecimal(rate)

	repost := now.Add(repostDelay)
	postings = append(postings,
		posting{domain.TxSell, p.SaleProceeds(), repost, date, fmt.Sprintf("Sale %s %d shares", p.StockName, shares)},
		posting{domain.TxFeeDeduction, saleFees.TotalFee, repost, date, fmt.Sprintf("Sale fees %s", p.StockName)},
	)

	if err := s.repo.Upsert(*p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("position_id", p.ID).
		Int64("shares", shares).
		Str("price", price.String()).
		Str("profit", profit.String()).
		Msg("Recorded sale")

	return p, s.post(p, postings)
}

// SetStatus finishes or re-opens a position. Finishing a position that won
// no shares books the allotment fees as its loss.
func (s *Service) SetStatus(positionID string, status domain.PositionStatus) (*domain.Position, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown position status %q", domain.ErrInvalidInput, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.repo.GetByID(positionID)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}

	now := s.now()
	p.Status = status
	p.UpdateTime = &now

	noShares := p.WinningShares == 0 && !p.Sold()
	switch {
	case status == domain.PositionFinished && noShares:
		loss := UnallottedLoss(p, s.fees.ComputeAllotmentFees(0, p.IssuePrice, p.PackageFee))
		p.Profit = decimal.NewNullDecimal(loss)
		p.ProfitRate = decimal.NullDecimal{}
	case status == domain.PositionOngoing && noShares:
		p.Profit = decimal.NullDecimal{}
		p.ProfitRate = decimal.NullDecimal{}
	}

	if err := s.repo.Upsert(*p); err != nil {
		return nil, err
	}

	s.log.Info().Str("position_id", p.ID).Str("status", string(status)).Msg("Changed position status")
	return p, nil
}

// IsReconciliationWarning reports whether err only signals a ledger posting
// failure after a successful position write
func IsReconciliationWarning(err error) bool {
	var warning *domain.ReconciliationWarning
	return errors.As(err, &warning)
}
