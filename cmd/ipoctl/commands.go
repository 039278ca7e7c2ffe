package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/aristath/ipotracker/internal/di"
	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/aristath/ipotracker/internal/modules/positions"
)

// Commands lists every ipoctl subcommand
type Commands struct {
	Accounts  AccountsCmd  `cmd:"" help:"List or create brokerage accounts."`
	Deposit   DepositCmd   `cmd:"" help:"Record a deposit."`
	Withdraw  WithdrawCmd  `cmd:"" help:"Record a withdrawal after checking the balance."`
	Funds     FundsCmd     `cmd:"" help:"Show balances for one account or all of them."`
	Statement StatementCmd `cmd:"" help:"Print an account's merged statement."`

	Subscribe SubscribeCmd `cmd:"" help:"Record a new IPO subscription."`
	Allot     AllotCmd     `cmd:"" help:"Record or amend the allotment result of a position."`
	Sell      SellCmd      `cmd:"" help:"Record or amend the sale of allotted shares."`
	Finish    FinishCmd    `cmd:"" help:"Mark a position finished."`
	Reopen    ReopenCmd    `cmd:"" help:"Mark a finished position ongoing again."`
	Positions PositionsCmd `cmd:"" help:"List positions, newest first."`
	Stats     StatsCmd     `cmd:"" help:"Summarise profit and winning rate."`

	Fees      FeesCmd      `cmd:"" help:"Quote fees without recording anything."`
	Recompute RecomputeCmd `cmd:"" help:"Rebuild every account's balance from its records."`
	Backup    BackupCmd    `cmd:"" help:"Manage cloud backups."`
	Export    ExportCmd    `cmd:"" help:"Write a snapshot archive of the whole ledger."`
	Import    ImportCmd    `cmd:"" help:"Replace the ledger with a snapshot archive."`
}

// AccountsCmd groups account commands
type AccountsCmd struct {
	List   AccountsListCmd   `cmd:"" default:"1" help:"List accounts."`
	Create AccountsCreateCmd `cmd:"" help:"Create an account."`
}

// AccountsListCmd lists accounts
type AccountsListCmd struct{}

// Run executes the command
func (cmd *AccountsListCmd) Run(ctx *kong.Context, c *di.Container) error {
	accounts, err := c.AccountService.List()
	if err != nil {
		return err
	}

	tw := newTable(ctx.Stdout, "ID", "NAME", "DEFAULT")
	for _, a := range accounts {
		tw.row(a.ID, a.Name, yesNo(a.IsDefault))
	}
	return tw.flush()
}

// AccountsCreateCmd creates an account
type AccountsCreateCmd struct {
	Name string `arg:"" help:"Display name of the account."`
}

// Run executes the command
func (cmd *AccountsCreateCmd) Run(ctx *kong.Context, c *di.Container) error {
	a, err := c.AccountService.Create(cmd.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Created account %s (%s)\n", a.Name, a.ID)
	return nil
}

// CashMovementArgs are the arguments shared by deposit and withdraw
type CashMovementArgs struct {
	Account string          `arg:"" help:"Account ID."`
	Amount  decimal.Decimal `arg:"" help:"Amount in HKD."`
	Pending bool            `help:"Record as pending; pending movements do not change the balance."`
	Note    string          `help:"Free-text description."`
}

func (a CashMovementArgs) input(typ domain.CashMovementType) ledger.CashMovementInput {
	in := ledger.CashMovementInput{
		AccountID:   a.Account,
		Type:        typ,
		Amount:      a.Amount,
		Description: a.Note,
	}
	if a.Pending {
		in.Status = domain.StatusPending
	}
	return in
}

// DepositCmd records a deposit
type DepositCmd struct {
	CashMovementArgs `embed:""`
}

// Run executes the command
func (cmd *DepositCmd) Run(ctx *kong.Context, c *di.Container) error {
	m, err := c.LedgerService.AddCashMovement(cmd.input(domain.CashDeposit))
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Deposit %s recorded (%s, %s)\n", domain.HKD(m.Amount), m.Status, m.ID)
	return printFunds(ctx, c, cmd.Account)
}

// WithdrawCmd records a withdrawal. A completed one must fit in the balance.
type WithdrawCmd struct {
	CashMovementArgs `embed:""`
}

// Run executes the command
func (cmd *WithdrawCmd) Run(ctx *kong.Context, c *di.Container) error {
	m, err := c.LedgerService.AddCashMovement(cmd.input(domain.CashWithdraw))
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Withdrawal %s recorded (%s, %s)\n", domain.HKD(m.Amount), m.Status, m.ID)
	return printFunds(ctx, c, cmd.Account)
}

// FundsCmd shows balances
type FundsCmd struct {
	Account string `arg:"" optional:"" help:"Account ID; omit for every account."`
}

// Run executes the command
func (cmd *FundsCmd) Run(ctx *kong.Context, c *di.Container) error {
	if cmd.Account != "" {
		return printFunds(ctx, c, cmd.Account)
	}

	summary, err := c.LedgerService.GetFundsSummary()
	if err != nil {
		return err
	}

	tw := newTable(ctx.Stdout, "ACCOUNT", "BALANCE", "DEPOSITED", "WITHDRAWN")
	for _, d := range summary.AccountDetails {
		tw.row(d.Account.Name,
			money(d.Funds.Balances.Get(domain.CurrencyHKD)),
			money(d.Funds.TotalDeposit.Get(domain.CurrencyHKD)),
			money(d.Funds.TotalWithdraw.Get(domain.CurrencyHKD)),
		)
	}
	tw.row("TOTAL",
		money(summary.TotalBalances.Get(domain.CurrencyHKD)),
		money(summary.TotalDeposit.Get(domain.CurrencyHKD)),
		money(summary.TotalWithdraw.Get(domain.CurrencyHKD)),
	)
	return tw.flush()
}

// StatementCmd prints a statement
type StatementCmd struct {
	Account string `arg:"" help:"Account ID."`
	Kind    string `help:"Entry kind." default:"all" enum:"all,deposit,withdraw,business"`
	Range   string `help:"Date range." default:"all" enum:"all,week,month,quarter,year"`
	Status  string `help:"Cash movement status filter (completed, pending, cancelled)."`
}

// Run executes the command
func (cmd *StatementCmd) Run(ctx *kong.Context, c *di.Container) error {
	entries, err := c.LedgerService.Statement(cmd.Account, ledger.StatementFilter{
		Kind:   cmd.Kind,
		Range:  cmd.Range,
		Status: domain.MovementStatus(cmd.Status),
	})
	if err != nil {
		return err
	}

	tw := newTable(ctx.Stdout, "DATE", "TYPE", "STOCK", "AMOUNT", "FEES", "EFFECT", "STATUS")
	for _, e := range entries {
		tw.row(e.Datetime.Local().Format("2006-01-02 15:04"), e.Label, e.StockName,
			money(e.Amount), money(e.Fees), money(e.Effect), string(e.Status))
	}
	return tw.flush()
}

// SubscribeCmd creates a position
type SubscribeCmd struct {
	Account    string          `help:"Account ID." default:"default"`
	Name       string          `arg:"" help:"Stock name."`
	Code       string          `help:"Stock code, e.g. 02590."`
	Price      decimal.Decimal `help:"Issue price per share." required:""`
	Hands      int64           `help:"Hands subscribed." required:""`
	BoardLot   int64           `help:"Shares per hand." default:"100"`
	PackageFee decimal.Decimal `help:"Broker package fee charged on allotment."`
}

// Run executes the command
func (cmd *SubscribeCmd) Run(ctx *kong.Context, c *di.Container) error {
	p, err := c.PositionService.CreatePosition(positions.CreateInput{
		AccountID:         cmd.Account,
		StockName:         cmd.Name,
		StockCode:         cmd.Code,
		IssuePrice:        cmd.Price,
		PackageFee:        cmd.PackageFee,
		SubscriptionHands: cmd.Hands,
		BoardLot:          cmd.BoardLot,
	})
	if err != nil {
		return err
	}
	printPosition(ctx, p)
	return nil
}

// AllotCmd records an allotment
type AllotCmd struct {
	ID     string    `arg:"" help:"Position ID."`
	Shares int64     `arg:"" help:"Shares allotted (0 for none)."`
	Date   time.Time `help:"Allotment date (YYYY-MM-DD); defaults to now." format:"2006-01-02"`
}

// Run executes the command
func (cmd *AllotCmd) Run(ctx *kong.Context, c *di.Container) error {
	p, err := c.PositionService.RecordAllotment(cmd.ID, cmd.Shares, cmd.Date)
	return reportPosition(ctx, p, err)
}

// SellCmd records a sale
type SellCmd struct {
	ID     string          `arg:"" help:"Position ID."`
	Price  decimal.Decimal `arg:"" help:"Sell price per share."`
	Shares int64           `arg:"" help:"Shares sold."`
	Date   time.Time       `help:"Sale date (YYYY-MM-DD); defaults to now." format:"2006-01-02"`
}

// Run executes the command
func (cmd *SellCmd) Run(ctx *kong.Context, c *di.Container) error {
	p, err := c.PositionService.RecordSale(cmd.ID, cmd.Price, cmd.Shares, cmd.Date)
	return reportPosition(ctx, p, err)
}

// FinishCmd finishes a position
type FinishCmd struct {
	ID string `arg:"" help:"Position ID."`
}

// Run executes the command
func (cmd *FinishCmd) Run(ctx *kong.Context, c *di.Container) error {
	p, err := c.PositionService.SetStatus(cmd.ID, domain.PositionFinished)
	return reportPosition(ctx, p, err)
}

// ReopenCmd reopens a position
type ReopenCmd struct {
	ID string `arg:"" help:"Position ID."`
}

// Run executes the command
func (cmd *ReopenCmd) Run(ctx *kong.Context, c *di.Container) error {
	p, err := c.PositionService.SetStatus(cmd.ID, domain.PositionOngoing)
	return reportPosition(ctx, p, err)
}

// PositionsCmd lists positions
type PositionsCmd struct {
	Account string `help:"Only this account."`
	Status  string `help:"Only this status (ongoing, finished)."`
}

// Run executes the command
func (cmd *PositionsCmd) Run(ctx *kong.Context, c *di.Container) error {
	list, err := c.PositionService.List(positions.ListFilter{
		AccountID: cmd.Account,
		Status:    domain.PositionStatus(cmd.Status),
	})
	if err != nil {
		return err
	}

	tw := newTable(ctx.Stdout, "ID", "STOCK", "ACCOUNT", "HANDS", "WON", "SOLD", "PROFIT", "STATUS")
	for _, p := range list {
		tw.row(p.ID, p.StockName, p.AccountID,
			fmt.Sprint(p.SubscriptionHands), fmt.Sprint(p.WinningShares), fmt.Sprint(p.SellShares),
			nullMoney(p.Profit), string(p.Status))
	}
	return tw.flush()
}

// StatsCmd prints statistics
type StatsCmd struct {
	Account string    `help:"Only this account."`
	Status  string    `help:"Only this status (ongoing, finished)."`
	From    time.Time `help:"First subscription day (YYYY-MM-DD)." format:"2006-01-02"`
	To      time.Time `help:"Last subscription day (YYYY-MM-DD)." format:"2006-01-02"`
}

// Run executes the command
func (cmd *StatsCmd) Run(ctx *kong.Context, c *di.Container) error {
	filter := positions.StatsFilter{
		AccountID: cmd.Account,
		Status:    domain.PositionStatus(cmd.Status),
	}
	if !cmd.From.IsZero() {
		filter.From = &cmd.From
	}
	if !cmd.To.IsZero() {
		filter.To = &cmd.To
	}

	st, err := c.PositionService.Stats(filter)
	if err != nil {
		return err
	}

	tw := newTable(ctx.Stdout, "METRIC", "VALUE")
	tw.row("Positions", fmt.Sprint(st.Total))
	tw.row("Ongoing", fmt.Sprint(st.Ongoing))
	tw.row("Finished", fmt.Sprint(st.Finished))
	tw.row("Realised", fmt.Sprint(st.Realised))
	tw.row("Total profit", money(st.TotalProfit))
	tw.row("Winning rate", st.WinningRate.StringFixed(2)+"%")
	tw.row("Mean profit", fmt.Sprintf("%.2f", st.MeanProfit))
	tw.row("Profit std dev", fmt.Sprintf("%.2f", st.ProfitStdDev))
	return tw.flush()
}

// FeesCmd groups fee quotes
type FeesCmd struct {
	Allotment FeesAllotmentCmd `cmd:"" help:"Quote allotment fees."`
	Sale      FeesSaleCmd      `cmd:"" help:"Quote sale fees."`
}

// FeesAllotmentCmd quotes allotment fees
type FeesAllotmentCmd struct {
	Shares     int64           `arg:"" help:"Shares allotted."`
	Price      decimal.Decimal `arg:"" help:"Issue price per share."`
	PackageFee decimal.Decimal `help:"Broker package fee."`
}

// Run executes the command
func (cmd *FeesAllotmentCmd) Run(ctx *kong.Context, c *di.Container) error {
	f := c.FeeCalculator.ComputeAllotmentFees(cmd.Shares, cmd.Price, cmd.PackageFee)

	tw := newTable(ctx.Stdout, "FEE", "AMOUNT")
	tw.row("Brokerage", money(f.BrokerageFee))
	tw.row("Trading fee", money(f.TradingFee))
	tw.row("SFC levy", money(f.SFCLevy))
	tw.row("AFRC levy", money(f.AFRCLevy))
	tw.row("Package fee", money(f.PackageFee))
	tw.row("Total", money(f.TotalFee))
	return tw.flush()
}

// FeesSaleCmd quotes sale fees
type FeesSaleCmd struct {
	Shares int64           `arg:"" help:"Shares sold."`
	Price  decimal.Decimal `arg:"" help:"Sell price per share."`
}

// Run executes the command
func (cmd *FeesSaleCmd) Run(ctx *kong.Context, c *di.Container) error {
	f := c.FeeCalculator.ComputeSaleFees(cmd.Shares, cmd.Price)

	tw := newTable(ctx.Stdout, "FEE", "AMOUNT")
	tw.row("Commission", money(f.Commission))
	tw.row("Stamp duty", money(f.StampDuty))
	tw.row("Trading levy", money(f.TradingLevy))
	tw.row("Trading fee", money(f.TradingFee))
	tw.row("Settlement", money(f.SettlementFee))
	tw.row("Total", money(f.TotalFee))
	return tw.flush()
}

// RecomputeCmd rebuilds balances
type RecomputeCmd struct{}

// Run executes the command
func (cmd *RecomputeCmd) Run(ctx *kong.Context, c *di.Container) error {
	n, err := c.LedgerService.RecomputeAll()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "Recomputed %d accounts\n", n)
	return nil
}
