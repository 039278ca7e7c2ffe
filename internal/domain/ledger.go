package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CashMovementType is the kind of a user-entered cash movement
type CashMovementType string

const (
	CashDeposit  CashMovementType = "deposit"
	CashWithdraw CashMovementType = "withdraw"
)

// ParseCashMovementType validates a raw cash movement type
func ParseCashMovementType(s string) (CashMovementType, error) {
	switch t := CashMovementType(s); t {
	case CashDeposit, CashWithdraw:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransactionType, s)
}

// UnmarshalText rejects unknown cash movement types at decode time
func (t *CashMovementType) UnmarshalText(b []byte) error {
	parsed, err := ParseCashMovementType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MovementStatus is the settlement status of a cash movement.
// Only completed movements affect the balance.
type MovementStatus string

const (
	StatusCompleted MovementStatus = "completed"
	StatusPending   MovementStatus = "pending"
	StatusCancelled MovementStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses
func (s MovementStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// CashMovement is a deposit or withdrawal entered by the user.
// Unlike business transactions these may be edited or deleted.
type CashMovement struct {
	ID          string           `json:"id"`
	AccountID   string           `json:"accountId"`
	Type        CashMovementType `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    Currency         `json:"currency"`
	Datetime    time.Time        `json:"datetime"`
	Status      MovementStatus   `json:"status"`
	Description string           `json:"description,omitempty"`
	CreateTime  time.Time        `json:"createTime"`
	UpdateTime  *time.Time       `json:"updateTime,omitempty"`
	Timestamp   int64            `json:"timestamp"` // unix ms of Datetime
}

// TransactionType is the closed set of business transaction kinds
type TransactionType string

const (
	TxSubscribe    TransactionType = "subscribe"
	TxAllot        TransactionType = "allot"
	TxAllotRefund  TransactionType = "allot_refund"
	TxFeeDeduction TransactionType = "fee_deduction"
	TxFeeRefund    TransactionType = "fee_refund"
	TxSell         TransactionType = "sell"
	TxSellRefund   TransactionType = "sell_refund"
)

// TransactionTypes lists every known business transaction type
var TransactionTypes = []TransactionType{
	TxSubscribe, TxAllot, TxAllotRefund, TxFeeDeduction, TxFeeRefund, TxSell, TxSellRefund,
}

// ParseTransactionType validates a raw business transaction type
func ParseTransactionType(s string) (TransactionType, error) {
	for _, t := range TransactionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransactionType, s)
}

// UnmarshalText rejects unknown business transaction types at decode time
func (t *TransactionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsRefund reports whether t reverses an earlier posting
func (t TransactionType) IsRefund() bool {
	return t == TxAllotRefund || t == TxFeeRefund || t == TxSellRefund
}

// BusinessTransaction is an append-only ledger posting generated by the
// position lifecycle. Amendments are expressed as *_refund postings.
type BusinessTransaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Type         TransactionType `json:"type"`
	StockID      string          `json:"stockId,omitempty"`
	StockName    string          `json:"stockName,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Fees         decimal.Decimal `json:"fees"`
	Description  string          `json:"description,omitempty"`
	Datetime     time.Time       `json:"datetime"`
	BusinessDate *time.Time      `json:"businessDate,omitempty"` // display only
	CreateTime   time.Time       `json:"createTime"`
	Timestamp    int64           `json:"timestamp"` // unix ms of Datetime
}

// AccountFunds is the derived balance cache of one account.
// It is always rebuilt from the logs and never patched in place.
type AccountFunds struct {
	AccountID      string    `json:"accountId"`
	Balances       Amounts   `json:"balances"`
	TotalDeposit   Amounts   `json:"totalDeposit"`
	TotalWithdraw  Amounts   `json:"totalWithdraw"`
	FrozenAmount   Amounts   `json:"frozenAmount"` // reserved, always zero
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

// NewAccountFunds returns an all-zero funds record for an account
func NewAccountFunds(accountID string) AccountFunds {
	return AccountFunds{
		AccountID:     accountID,
		Balances:      ZeroAmounts(),
		TotalDeposit:  ZeroAmounts(),
		TotalWithdraw: ZeroAmounts(),
		FrozenAmount:  ZeroAmounts(),
	}
}

// Available returns balance minus frozen for the currency
func (f AccountFunds) Available(c Currency) decimal.Decimal {
	return f.Balances.Get(c).Sub(f.FrozenAmount.Get(c))
}
