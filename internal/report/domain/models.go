package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	balancedomain "github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
)

const (
	ReportTrialBalance   = "trial_balance"
	ReportProfitAndLoss  = "profit_and_loss"
	ReportBalanceSheet   = "balance_sheet"
	ReportLedgerVouchers = "ledger_vouchers"
)

// LineKind tells ledger lines apart from computed lines that have no ledger behind them.
type LineKind string

const (
	LineLedger           LineKind = "ledger"
	LineNetProfit        LineKind = "net_profit"
	LineNetLoss          LineKind = "net_loss"
	LineProfitAndLoss    LineKind = "profit_and_loss"
	LineRetainedEarnings LineKind = "retained_earnings"
)

const (
	NetProfitLabel        = "Net Profit"
	NetLossLabel          = "Net Loss"
	ProfitAndLossLabel    = "Profit & Loss A/c"
	RetainedEarningsLabel = "Retained Earnings"
	ReservesGroupName     = "Reserves & Surplus"
)

type TrialBalanceLine struct {
	LedgerID   snowflake.ID            `json:"ledger_id"`
	LedgerName string                  `json:"ledger_name"`
	GroupName  string                  `json:"group_name"`
	GroupType  accountdomain.GroupType `json:"group_type"`
	Inactive   bool                    `json:"inactive,omitempty"`
	Debit      money.Amount            `json:"debit"`
	Credit     money.Amount            `json:"credit"`
}

type TrialBalance struct {
	AsOf        calendar.Date      `json:"as_of"`
	Entries     []TrialBalanceLine `json:"entries"`
	TotalDebit  money.Amount       `json:"total_debit"`
	TotalCredit money.Amount       `json:"total_credit"`
	Diff        money.Amount       `json:"diff"`
}

// StatementLine is one row of a P&L or balance sheet. Computed rows carry no
// ledger id.
type StatementLine struct {
	Kind      LineKind      `json:"kind"`
	LedgerID  *snowflake.ID `json:"ledger_id,omitempty"`
	Name      string        `json:"name"`
	GroupName string        `json:"group_name,omitempty"`
	Amount    money.Amount  `json:"amount"`
}

type ProfitAndLoss struct {
	From          calendar.Date   `json:"from"`
	To            calendar.Date   `json:"to"`
	Expenses      []StatementLine `json:"expenses"`
	Income        []StatementLine `json:"income"`
	TotalExpenses money.Amount    `json:"total_expenses"`
	TotalIncome   money.Amount    `json:"total_income"`
	NetProfit     money.Amount    `json:"net_profit"`
}

type BalanceSheet struct {
	AsOf             calendar.Date   `json:"as_of"`
	Liabilities      []StatementLine `json:"liabilities"`
	Assets           []StatementLine `json:"assets"`
	TotalLiabilities money.Amount    `json:"total_liabilities"`
	TotalAssets      money.Amount    `json:"total_assets"`
	Diff             money.Amount    `json:"diff"`
}

type TrialBalanceRequest struct {
	AsOf string `form:"as_of"`
}

type ProfitAndLossRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

type BalanceSheetRequest struct {
	AsOf string `form:"as_of"`
}

type LedgerVouchersRequest struct {
	LedgerID string `form:"ledger_id"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// Service builds read-only financial statements. Every report reads a single
// snapshot of the books.
type Service interface {
	TrialBalance(ctx context.Context, req TrialBalanceRequest) (TrialBalance, error)
	ProfitAndLoss(ctx context.Context, req ProfitAndLossRequest) (ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, req BalanceSheetRequest) (BalanceSheet, error)
	LedgerVouchers(ctx context.Context, req LedgerVouchersRequest) (balancedomain.RunningLedger, error)
}

var (
	ErrInvalidDate      = balancedomain.ErrInvalidDate
	ErrInvalidDateRange = balancedomain.ErrInvalidDateRange
)
