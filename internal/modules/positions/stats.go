package positions

import (
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// StatsFilter narrows Stats by account, status and subscription date.
// From and To are inclusive calendar days.
type StatsFilter struct {
	AccountID string
	Status    domain.PositionStatus
	From      *time.Time
	To        *time.Time
}

// Stats summarises a set of positions
type Stats struct {
	Total            int             `json:"total"`
	Ongoing          int             `json:"ongoing"`
	Finished         int             `json:"finished"`
	Realised         int             `json:"realised"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
	WinningRate      decimal.Decimal `json:"winningRate"`
	MeanProfit       float64         `json:"meanProfit"`
	ProfitStdDev     float64         `json:"profitStdDev"`
	SubscribedShares int64           `json:"subscribedShares"`
	WinningShares    int64           `json:"winningShares"`
}

func (f StatsFilter) match(p *domain.Position) bool {
	if f.AccountID != "" && p.AccountID != f.AccountID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.From != nil && p.CreateTime.Before(startOfDay(*f.From)) {
		return false
	}
	if f.To != nil && !p.CreateTime.Before(startOfDay(*f.To).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Stats computes counts, realised profit and the share-weighted winning rate
// (won shares / subscribed shares × 100) of the positions matching filter.
// Positions count as realised once they carry a profit: sold, or finished
// without shares.
func (s *Service) Stats(filter StatsFilter) (*Stats, error) {
	all, err := s.repo.All()
	if err != nil {
		return nil, err
	}

	out := &Stats{TotalProfit: decimal.Zero, WinningRate: decimal.Zero}
	var profits []float64

	for i := range all {
		p := &all[i]
		if !filter.match(p) {
			continue
		}

		out.Total++
		switch p.Status {
		case domain.PositionOngoing:
			out.Ongoing++
		case domain.PositionFinished:
			out.Finished++
		}

		out.SubscribedShares += p.SubscribedShares()
		out.WinningShares += p.WinningShares

		if p.Profit.Valid {
			out.Realised++
			out.TotalProfit = out.TotalProfit.Add(p.Profit.Decimal)
			profits = append(profits, p.Profit.Decimal.InexactFloat64())
		}
	}

	if out.SubscribedShares > 0 {
		out.WinningRate = decimal.NewFromInt(out.WinningShares).
			Div(decimal.NewFromInt(out.SubscribedShares)).
			Mul(hundred).
			Round(2)
	}

	switch len(profits) {
	case 0:
	case 1:
		out.MeanProfit = profits[0]
	default:
		out.MeanProfit, out.ProfitStdDev = stat.MeanStdDev(profits, nil)
	}

	return out, nil
}
