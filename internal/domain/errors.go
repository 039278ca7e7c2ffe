package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an account, position or cash movement does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount is returned for non-positive or out-of-range amounts and share counts
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds is returned when a withdrawal exceeds the available balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidState is returned for transitions the position cannot take in its current state
	ErrInvalidState = errors.New("invalid state")
	// ErrUnknownTransactionType is returned when a record carries a type outside the known set
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	// ErrUnsupportedCurrency is returned for any currency other than HKD
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrInvalidInput is returned for missing or malformed non-numeric fields
	ErrInvalidInput = errors.New("invalid input")
)

// ReconciliationWarning reports that a position was written but one of the
// ledger postings that should accompany it failed. The position is not rolled
// back; the caller must reconcile by adding the missing posting.
type ReconciliationWarning struct {
	PositionID string
	Posting    TransactionType
	Err        error
}

func (w *ReconciliationWarning) Error() string {
	return fmt.Sprintf("position %s saved but %s posting failed: %v", w.PositionID, w.Posting, w.Err)
}

func (w *ReconciliationWarning) Unwrap() error {
	return w.Err
}

// InsufficientFundsError carries the figures behind an ErrInsufficientFunds
type InsufficientFundsError struct {
	Requested Money
	Available Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %s, available %s", e.Requested, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
