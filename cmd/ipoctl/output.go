package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/aristath/ipotracker/internal/di"
	"github.com/aristath/ipotracker/internal/domain"
)

type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	t.row(headers...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.w, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.w.Flush()
}

func money(d decimal.Decimal) string {
	return domain.HKD(d).String()
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money(d.Decimal)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func printFunds(ctx *kong.Context, c *di.Container, accountID string) error {
	funds, err := c.LedgerService.GetAccountFunds(accountID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Balance: %s (deposited %s, withdrawn %s)\n",
		money(funds.Balances.Get(domain.CurrencyHKD)),
		money(funds.TotalDeposit.Get(domain.CurrencyHKD)),
		money(funds.TotalWithdraw.Get(domain.CurrencyHKD)),
	)
	return nil
}

func printPosition(ctx *kong.Context, p *domain.Position) {
	fmt.Fprintf(ctx.Stdout, "%s  %s  [%s]\n", p.ID, p.StockName, p.Status)
	fmt.Fprintf(ctx.Stdout, "  subscribed: %d hands x %d @ %s\n", p.SubscriptionHands, p.BoardLot, money(p.IssuePrice))
	if p.Allotted() {
		line := fmt.Sprintf("  allotted:   %d shares", p.WinningShares)
		if p.WinningFeeDetails != nil {
			line += ", fees " + money(p.WinningFeeDetails.TotalFee)
		}
		fmt.Fprintln(ctx.Stdout, line)
	}
	if p.SellShares > 0 {
		line := fmt.Sprintf("  sold:       %d shares @ %s", p.SellShares, money(p.SellPrice))
		if p.SellFeeDetails != nil {
			line += ", fees " + money(p.SellFeeDetails.TotalFee)
		}
		fmt.Fprintln(ctx.Stdout, line)
	}
	if p.Profit.Valid {
		rate := "-"
		if p.ProfitRate.Valid {
			rate = p.ProfitRate.Decimal.StringFixed(2) + "%"
		}
		fmt.Fprintf(ctx.Stdout, "  profit:     %s (%s)\n", money(p.Profit.Decimal), rate)
	}
}

// reportPosition prints p when it was saved. A reconciliation warning still
// prints the position but fails the command so scripts notice.
func reportPosition(ctx *kong.Context, p *domain.Position, err error) error {
	var warning *domain.ReconciliationWarning
	if err != nil && !errors.As(err, &warning) {
		return err
	}
	printPosition(ctx, p)
	if warning != nil {
		return fmt.Errorf("position saved but the ledger needs reconciling: %w", warning)
	}
	return nil
}
