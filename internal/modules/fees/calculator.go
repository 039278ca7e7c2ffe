// Package fees computes Hong Kong IPO allotment and secondary-market sale fees.
package fees

import (
	"github.com/aristath/ipotracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Schedule holds the rates applied by the Calculator. Rates are fractions
// (0.01 means 1%). Minimums are in HKD.
type Schedule struct {
	// Allotment
	BrokerageRate       decimal.Decimal `json:"brokerageRate"`
	AllotmentTradingFee decimal.Decimal `json:"allotmentTradingFee"`
	SFCLevyRate         decimal.Decimal `json:"sfcLevyRate"`
	AFRCLevyRate        decimal.Decimal `json:"afrcLevyRate"`

	// Sale
	CommissionRate     decimal.Decimal `json:"commissionRate"`
	CommissionMinimum  decimal.Decimal `json:"commissionMinimum"`
	StampDutyRate      decimal.Decimal `json:"stampDutyRate"`
	TradingLevyRate    decimal.Decimal `json:"tradingLevyRate"`
	SaleTradingFeeRate decimal.Decimal `json:"saleTradingFeeRate"`
	SettlementRate     decimal.Decimal `json:"settlementRate"`
	SettlementMinimum  decimal.Decimal `json:"settlementMinimum"`
}

// HongKong returns the HKEX/SFC/AFRC schedule
func HongKong() Schedule {
	return Schedule{
		BrokerageRate:       decimal.RequireFromString("0.01"),
		AllotmentTradingFee: decimal.RequireFromString("0.0000565"),
		SFCLevyRate:         decimal.RequireFromString("0.000027"),
		AFRCLevyRate:        decimal.RequireFromString("0.0000015"),

		CommissionRate:     decimal.RequireFromString("0.0015"),
		CommissionMinimum:  decimal.RequireFromString("75"),
		StampDutyRate:      decimal.RequireFromString("0.001"),
		TradingLevyRate:    decimal.RequireFromString("0.0000285"),
		SaleTradingFeeRate: decimal.RequireFromString("0.0000565"),
		SettlementRate:     decimal.RequireFromString("0.00002"),
		SettlementMinimum:  decimal.RequireFromString("3"),
	}
}

// Calculator applies a Schedule. It holds no state and is safe for concurrent use.
type Calculator struct {
	schedule Schedule
}

// NewCalculator creates a calculator for the given schedule
func NewCalculator(schedule Schedule) *Calculator {
	return &Calculator{schedule: schedule}
}

// Schedule returns the rates in use
func (c *Calculator) Schedule() Schedule {
	return c.schedule
}

// ComputeAllotmentFees prices an allotment of shares at issuePrice.
// Every component is rounded to cents before summing; no stamp duty applies.
func (c *Calculator) ComputeAllotmentFees(shares int64, issuePrice, packageFee decimal.Decimal) domain.AllotmentFees {
	base := issuePrice.Mul(decimal.NewFromInt(shares))
	s := c.schedule

	f := domain.AllotmentFees{
		BrokerageFee: domain.RoundCents(base.Mul(s.BrokerageRate)),
		TradingFee:   domain.RoundCents(base.Mul(s.AllotmentTradingFee)),
		SFCLevy:      domain.RoundCents(base.Mul(s.SFCLevyRate)),
		AFRCLevy:     domain.RoundCents(base.Mul(s.AFRCLevyRate)),
		PackageFee:   domain.RoundCents(packageFee),
	}
	f.TotalFee = domain.RoundCents(f.BrokerageFee.
		Add(f.TradingFee).
		Add(f.SFCLevy).
		Add(f.AFRCLevy).
		Add(f.PackageFee))

	return f
}

// ComputeSaleFees prices a sale of shares at sellPrice.
// Stamp duty is rounded up to whole dollars; everything else to cents.
func (c *Calculator) ComputeSaleFees(shares int64, sellPrice decimal.Decimal) domain.SaleFees {
	base := sellPrice.Mul(decimal.NewFromInt(shares))
	s := c.schedule

	f := domain.SaleFees{
		Commission:    decimal.Max(domain.RoundCents(base.Mul(s.CommissionRate)), s.CommissionMinimum),
		StampDuty:     base.Mul(s.StampDutyRate).Ceil(),
		TradingLevy:   domain.RoundCents(base.Mul(s.TradingLevyRate)),
		TradingFee:    domain.RoundCents(base.Mul(s.SaleTradingFeeRate)),
		SettlementFee: decimal.Max(domain.RoundCents(base.Mul(s.SettlementRate)), s.SettlementMinimum),
	}
	f.TotalFee = domain.RoundCents(f.Commission.
		Add(f.StampDuty).
		Add(f.TradingLevy).
		Add(f.TradingFee).
		Add(f.SettlementFee))

	return f
}
