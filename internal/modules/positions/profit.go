package positions

import (
	"github.com/aristath/ipotracker/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SaleProfit returns the net profit of a sold position and its rate against
// the cost of the sold shares. Allotment fees are prorated by
// sellShares / winningShares.
//
//	gross = sellPrice × sellShares − issuePrice × sellShares
//	net   = gross − allotmentFee × sellShares / winningShares − saleFee
func SaleProfit(p *domain.Position) (profit, rate decimal.Decimal) {
	if p.SellShares <= 0 || p.WinningShares <= 0 {
		return decimal.Zero, decimal.Zero
	}

	sold := decimal.NewFromInt(p.SellShares)
	cost := p.IssuePrice.Mul(sold)
	gross := p.SaleProceeds().Sub(cost)

	var buyFees, sellFees decimal.Decimal
	if p.WinningFeeDetails != nil {
		buyFees = p.WinningFeeDetails.TotalFee.Mul(sold).Div(decimal.NewFromInt(p.WinningShares))
	}
	if p.SellFeeDetails != nil {
		sellFees = p.SellFeeDetails.TotalFee
	}

	net := gross.Sub(buyFees).Sub(sellFees)
	profit = domain.RoundCents(net)
	if cost.IsPositive() {
		rate = net.Div(cost).Mul(hundred).Round(2)
	}
	return profit, rate
}

// UnallottedLoss is the result of a finished position that won no shares:
// the allotment fees (at least the package fee) are lost.
func UnallottedLoss(p *domain.Position, fees domain.AllotmentFees) decimal.Decimal {
	if p.WinningFeeDetails != nil {
		fees = *p.WinningFeeDetails
	}
	return fees.TotalFee.Neg()
}
