package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBoardLot is the number of shares per hand when none is given
const DefaultBoardLot int64 = 100

// PositionStatus is user-controlled and orthogonal to the allotment/sale data
type PositionStatus string

const (
	PositionOngoing  PositionStatus = "ongoing"
	PositionFinished PositionStatus = "finished"
)

// Valid reports whether s is a known status
func (s PositionStatus) Valid() bool {
	return s == PositionOngoing || s == PositionFinished
}

// AllotmentFees is the fee breakdown charged when shares are allotted
type AllotmentFees struct {
	BrokerageFee decimal.Decimal `json:"brokerageFee"`
	TradingFee   decimal.Decimal `json:"tradingFee"`
	SFCLevy      decimal.Decimal `json:"sfcLevy"`
	AFRCLevy     decimal.Decimal `json:"afrcLevy"`
	PackageFee   decimal.Decimal `json:"packageFee"`
	TotalFee     decimal.Decimal `json:"totalFee"`
}

// SaleFees is the fee breakdown charged when allotted shares are sold
type SaleFees struct {
	Commission    decimal.Decimal `json:"commission"`
	StampDuty     decimal.Decimal `json:"stampDuty"`
	TradingLevy   decimal.Decimal `json:"tradingLevy"`
	TradingFee    decimal.Decimal `json:"tradingFee"`
	SettlementFee decimal.Decimal `json:"settlementFee"`
	TotalFee      decimal.Decimal `json:"totalFee"`
}

// Position is one IPO subscription in one account
type Position struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"accountId"`
	StockName         string          `json:"stockName"`
	StockCode         string          `json:"stockCode,omitempty"`
	IssuePrice        decimal.Decimal `json:"issuePrice"`
	PackageFee        decimal.Decimal `json:"packageFee"`
	SubscriptionHands int64           `json:"subscriptionHands"`
	BoardLot          int64           `json:"boardLot"`
	Status            PositionStatus  `json:"status"`

	WinningShares     int64          `json:"winningShares"`
	WinningTime       *time.Time     `json:"winningTime,omitempty"`
	WinningFeeDetails *AllotmentFees `json:"winningFeeDetails,omitempty"`

	SellPrice      decimal.Decimal `json:"sellPrice"`
	SellShares     int64           `json:"sellShares"`
	SellTime       *time.Time      `json:"sellTime,omitempty"`
	SellFeeDetails *SaleFees       `json:"sellFeeDetails,omitempty"`

	Profit     decimal.NullDecimal `json:"profit"`
	ProfitRate decimal.NullDecimal `json:"profitRate"`

	CreateTime time.Time  `json:"createTime"`
	UpdateTime *time.Time `json:"updateTime,omitempty"`
}

// Allotted reports whether an allotment result has been recorded
func (p *Position) Allotted() bool {
	return p.WinningTime != nil
}

// Sold reports whether a sale has been recorded
func (p *Position) Sold() bool {
	return p.SellTime != nil
}

// SubscribedShares is hands times board lot
func (p *Position) SubscribedShares() int64 {
	lot := p.BoardLot
	if lot <= 0 {
		lot = DefaultBoardLot
	}
	return p.SubscriptionHands * lot
}

// SubscriptionAmount is the cash committed at subscription (principal only)
func (p *Position) SubscriptionAmount() decimal.Decimal {
	return p.IssuePrice.Mul(decimal.NewFromInt(p.SubscribedShares()))
}

// AllotmentPrincipal is the cash paid for the allotted shares
func (p *Position) AllotmentPrincipal() decimal.Decimal {
	return RoundCents(p.IssuePrice.Mul(decimal.NewFromInt(p.WinningShares)))
}

// SaleProceeds is the gross cash received for the sold shares
func (p *Position) SaleProceeds() decimal.Decimal {
	return RoundCents(p.SellPrice.Mul(decimal.NewFromInt(p.SellShares)))
}
