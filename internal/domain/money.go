package domain

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency represents a settlement currency code
type Currency string

const (
	// CurrencyHKD is the only settlement currency the ledger books
	CurrencyHKD Currency = "HKD"
)

// Validate rejects any currency other than HKD
func (c Currency) Validate() error {
	if c != CurrencyHKD {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, string(c))
	}
	return nil
}

// Amounts holds one figure per currency. Only HKD is ever populated.
type Amounts map[Currency]decimal.Decimal

// ZeroAmounts returns an Amounts with HKD set to zero
func ZeroAmounts() Amounts {
	return Amounts{CurrencyHKD: decimal.Zero}
}

// Get returns the amount for a currency, zero when absent
func (a Amounts) Get(c Currency) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	return a[c]
}

// RoundCents rounds half away from zero to two decimal places
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Money represents a monetary value with currency
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// NewMoney creates a new Money value
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// HKD is shorthand for NewMoney(amount, CurrencyHKD)
func HKD(amount decimal.Decimal) Money {
	return NewMoney(amount, CurrencyHKD)
}

// String formats the value with thousands separators, e.g. "HK$1,234.50".
func (m Money) String() string {
	cur := money.GetCurrency(string(m.Currency))
	if cur == nil {
		return m.Amount.StringFixed(2) + " " + string(m.Currency)
	}

	grapheme := cur.Grapheme
	if m.Currency == CurrencyHKD {
		grapheme = "HK$"
	}

	f := money.NewFormatter(cur.Fraction, cur.Decimal, cur.Thousand, grapheme, cur.Template)
	minor := m.Amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return f.Format(minor.IntPart())
}
