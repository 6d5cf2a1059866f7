package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"gorm.io/gorm"
)

// Totals is the raw debit and credit sum of one ledger's entries.
type Totals struct {
	LedgerID snowflake.ID
	Debit    int64
	Credit   int64
}

// Posting is one entry joined with its voucher header.
type Posting struct {
	VoucherID   snowflake.ID
	VoucherNo   string
	VoucherType string
	VoucherDate calendar.Date
	Narration   string
	CreatedAt   time.Time
	LineNo      int
	Direction   accountdomain.Side
	Amount      int64
}

type LedgerBalance struct {
	LedgerID   snowflake.ID            `json:"ledger_id"`
	LedgerName string                  `json:"ledger_name"`
	GroupName  string                  `json:"group_name"`
	GroupType  accountdomain.GroupType `json:"group_type"`
	NormalSide accountdomain.Side      `json:"normal_side"`
	AsOf       calendar.Date           `json:"as_of"`
	Balance    money.Amount            `json:"balance"`
	Debit      money.Amount            `json:"debit"`
	Credit     money.Amount            `json:"credit"`
}

type RunningEntry struct {
	VoucherID      snowflake.ID  `json:"voucher_id"`
	VoucherNo      string        `json:"voucher_no"`
	VoucherType    string        `json:"type"`
	Date           calendar.Date `json:"date"`
	Narration      string        `json:"narration"`
	Debit          money.Amount  `json:"debit"`
	Credit         money.Amount  `json:"credit"`
	RunningBalance money.Amount  `json:"running_balance"`
}

type RunningLedger struct {
	LedgerID       snowflake.ID       `json:"ledger_id"`
	LedgerName     string             `json:"ledger_name"`
	GroupName      string             `json:"group_name"`
	NormalSide     accountdomain.Side `json:"normal_side"`
	From           calendar.Date      `json:"from"`
	To             calendar.Date      `json:"to"`
	OpeningBalance money.Amount       `json:"opening_balance"`
	Entries        []RunningEntry     `json:"entries"`
	TotalDebit     money.Amount       `json:"total_debit"`
	TotalCredit    money.Amount       `json:"total_credit"`
	ClosingBalance money.Amount       `json:"closing_balance"`
}

type LedgerBalanceRequest struct {
	LedgerID string
	AsOf     string `form:"as_of"`
}

type RunningLedgerRequest struct {
	LedgerID string `form:"ledger_id"`
	From     string `form:"from"`
	To       string `form:"to"`
}

type Repository interface {
	// SumUpTo totals entries dated on or before asOf, per ledger. A nil
	// ledgerID covers every ledger.
	SumUpTo(ctx context.Context, db *gorm.DB, asOf time.Time, ledgerID *snowflake.ID) ([]Totals, error)
	// ListPostings returns one ledger's entries in [from, to] in replay order.
	ListPostings(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, from, to time.Time) ([]Posting, error)
}

// Reader answers balance questions against one consistent view of the books.
type Reader interface {
	Accounts(ctx context.Context) ([]accountdomain.LedgerAccount, error)
	// Balances returns every ledger's balance on its normal side as of asOf,
	// opening balance included.
	Balances(ctx context.Context, asOf time.Time) (map[snowflake.ID]int64, error)
	// Movements returns each ledger's signed change over [from, to].
	Movements(ctx context.Context, from, to time.Time) (map[snowflake.ID]int64, error)
	Running(ctx context.Context, account accountdomain.LedgerAccount, from, to time.Time) (RunningLedger, error)
}

type Service interface {
	LedgerBalance(ctx context.Context, req LedgerBalanceRequest) (LedgerBalance, error)
	RunningLedger(ctx context.Context, req RunningLedgerRequest) (RunningLedger, error)
	// Snapshot runs fn against a read-only view that does not change while fn runs.
	Snapshot(ctx context.Context, fn func(Reader) error) error
}
