package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Statement entry kinds used by StatementFilter.Kind
const (
	KindAll      = "all"
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindBusiness = "business"
)

// ErrInvalidFilter is returned for an unknown statement kind, status or range
var ErrInvalidFilter = errors.New("invalid statement filter")

var dateRanges = map[string]time.Duration{
	"week":    7 * 24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"quarter": 90 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
}

// StatementFilter narrows an account statement. Empty fields match everything.
type StatementFilter struct {
	Kind   string                // all, deposit, withdraw, business
	Status domain.MovementStatus // cash movements only; postings are always completed
	Range  string                // all, week, month, quarter, year
}

// Validate rejects unknown kinds and ranges
func (f StatementFilter) Validate() error {
	switch f.Kind {
	case "", KindAll, KindDeposit, KindWithdraw, KindBusiness:
	default:
		return fmt.Errorf("unknown statement kind %q", f.Kind)
	}
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("unknown status %q", f.Status)
	}
	if f.Range != "" && f.Range != "all" {
		if _, ok := dateRanges[f.Range]; !ok {
			return fmt.Errorf("unknown date range %q", f.Range)
		}
	}
	return nil
}

// StatementEntry is one line of the merged account timeline
type StatementEntry struct {
	ID           string                `json:"id"`
	AccountID    string                `json:"accountId"`
	Kind         string                `json:"kind"`
	Type         string                `json:"type"`
	Label        string                `json:"label"`
	StockID      string                `json:"stockId,omitempty"`
	StockName    string                `json:"stockName,omitempty"`
	Description  string                `json:"description,omitempty"`
	Amount       decimal.Decimal       `json:"amount"`
	Fees         decimal.Decimal       `json:"fees"`
	Effect       decimal.Decimal       `json:"effect"`
	Currency     domain.Currency       `json:"currency"`
	Status       domain.MovementStatus `json:"status"`
	Datetime     time.Time             `json:"datetime"`
	BusinessDate *time.Time            `json:"businessDate,omitempty"`
	CreateTime   time.Time             `json:"createTime"`
	Timestamp    int64                 `json:"timestamp"`
}

var typeLabels = map[string]string{
	string(domain.CashDeposit):    "Deposit",
	string(domain.CashWithdraw):   "Withdrawal",
	string(domain.TxSubscribe):    "IPO subscription",
	string(domain.TxAllot):        "Allotment payment",
	string(domain.TxAllotRefund):  "Allotment reversal",
	string(domain.TxFeeDeduction): "Fee deduction",
	string(domain.TxFeeRefund):    "Fee reversal",
	string(domain.TxSell):         "Sale proceeds",
	string(domain.TxSellRefund):   "Sale reversal",
}

// Label returns the display name of a movement or transaction type
func Label(t string) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return t
}

// typePriority orders same-instant entries: principal first, then the fee,
// then reversals, then everything else.
func typePriority(t string) int {
	switch domain.TransactionType(t) {
	case domain.TxAllot, domain.TxSell:
		return 1
	case domain.TxFeeDeduction:
		return 2
	case domain.TxAllotRefund, domain.TxFeeRefund, domain.TxSellRefund:
		return 3
	}
	return 4
}

// SortStatement orders entries newest first with a total tiebreak chain:
// timestamp, type priority, create time, id, description.
func SortStatement(entries []StatementEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		if pa, pb := typePriority(a.Type), typePriority(b.Type); pa != pb {
			return pa < pb
		}
		if !a.CreateTime.Equal(b.CreateTime) {
			return a.CreateTime.After(b.CreateTime)
		}
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c > 0
		}
		return a.Description > b.Description
	})
}

// Statement merges an account's cash movements and business transactions
// into a single timeline.
func (s *Service) Statement(accountID string, filter StatementFilter) ([]StatementEntry, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	movements, err := s.repo.CashMovements()
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.BusinessTransactions()
	if err != nil {
		return nil, err
	}

	var cutoff int64
	if window, ok := dateRanges[filter.Range]; ok {
		cutoff = s.now().Add(-window).UnixMilli()
	}

	entries := make([]StatementEntry, 0)

	if filter.Kind != KindBusiness {
		for _, m := range movements {
			if m.AccountID != accountID {
				continue
			}
			if (filter.Kind == KindDeposit && m.Type != domain.CashDeposit) ||
				(filter.Kind == KindWithdraw && m.Type != domain.CashWithdraw) {
				continue
			}
			if filter.Status != "" && m.Status != filter.Status {
				continue
			}
			if m.Timestamp < cutoff {
				continue
			}
			entries = append(entries, StatementEntry{
				ID:          m.ID,
				AccountID:   m.AccountID,
				Kind:        string(m.Type),
				Type:        string(m.Type),
				Label:       Label(string(m.Type)),
				Description: m.Description,
				Amount:      m.Amount,
				Fees:        decimal.Zero,
				Effect:      CashEffect(m),
				Currency:    m.Currency,
				Status:      m.Status,
				Datetime:    m.Datetime,
				CreateTime:  m.CreateTime,
				Timestamp:   m.Timestamp,
			})
		}
	}

	includeBusiness := filter.Kind == "" || filter.Kind == KindAll || filter.Kind == KindBusiness
	if includeBusiness && (filter.Status == "" || filter.Status == domain.StatusCompleted) {
		for _, t := range txns {
			if t.AccountID != accountID || t.Timestamp < cutoff {
				continue
			}
			entries = append(entries, StatementEntry{
				ID:           t.ID,
				AccountID:    t.AccountID,
				Kind:         KindBusiness,
				Type:         string(t.Type),
				Label:        Label(string(t.Type)),
				StockID:      t.StockID,
				StockName:    t.StockName,
				Description:  t.Description,
				Amount:       t.Amount,
				Fees:         t.Fees,
				Effect:       Effect(t),
				Currency:     domain.CurrencyHKD,
				Status:       domain.StatusCompleted,
				Datetime:     t.Datetime,
				BusinessDate: t.BusinessDate,
				CreateTime:   t.CreateTime,
				Timestamp:    t.Timestamp,
			})
		}
	}

	SortStatement(entries)
	return entries, nil
}
