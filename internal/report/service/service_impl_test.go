package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	accountrepo "github.com/smallbiznis/bookkeeper/internal/account/repository"
	accountservice "github.com/smallbiznis/bookkeeper/internal/account/service"
	auditrepo "github.com/smallbiznis/bookkeeper/internal/audit/repository"
	auditservice "github.com/smallbiznis/bookkeeper/internal/audit/service"
	balancerepo "github.com/smallbiznis/bookkeeper/internal/balance/repository"
	balanceservice "github.com/smallbiznis/bookkeeper/internal/balance/service"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	"github.com/smallbiznis/bookkeeper/internal/report/domain"
	"github.com/smallbiznis/bookkeeper/internal/report/service"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	voucherrepo "github.com/smallbiznis/bookkeeper/internal/voucher/repository"
	voucherservice "github.com/smallbiznis/bookkeeper/internal/voucher/service"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      domain.Service
	accounts accountdomain.Service
	vouchers voucherdomain.Service
	clock    *clock.FakeClock

	cash, capital, sales, rent accountdomain.LedgerAccount
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.Migrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC))
	books := config.NewStaticBooksConfigHolder(config.DefaultBooksConfig())

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, GenID: node, Repo: auditrepo.Provide(),
	})
	balances := balanceservice.New(balanceservice.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, Repo: balancerepo.Provide(), AccountRepo: accountrepo.Provide(),
	})
	f := &fixture{
		db:    db,
		node:  node,
		clock: clk,
		accounts: accountservice.New(accountservice.Params{
			DB: db, Log: zap.NewNop(), Clock: clk, GenID: node, Repo: accountrepo.Provide(), AuditSvc: audit,
		}),
		vouchers: voucherservice.New(voucherservice.Params{
			DB:          db,
			Log:         zap.NewNop(),
			Clock:       clk,
			GenID:       node,
			Books:       books,
			Repo:        voucherrepo.Provide(),
			AccountRepo: accountrepo.Provide(),
			AuditSvc:    audit,
		}),
		svc: service.New(service.Params{
			Log: zap.NewNop(), Clock: clk, Books: books, BalanceSvc: balances,
		}),
	}

	f.cash = f.ledger(t, "Cash", f.group(t, "Cash-in-Hand", accountdomain.GroupAsset))
	f.capital = f.ledger(t, "Capital", f.group(t, "Capital Account", accountdomain.GroupCapital))
	f.sales = f.ledger(t, "Sales", f.group(t, "Sales Accounts", accountdomain.GroupIncome))
	f.rent = f.ledger(t, "Rent", f.group(t, "Indirect Expenses", accountdomain.GroupExpense))
	return f
}

func (f *fixture) group(t *testing.T, name string, typ accountdomain.GroupType) accountdomain.AccountGroup {
	t.Helper()
	g, err := f.accounts.CreateGroup(context.Background(), accountdomain.CreateGroupRequest{Name: name, Type: typ})
	require.NoError(t, err)
	return g
}

func (f *fixture) ledger(t *testing.T, name string, g accountdomain.AccountGroup) accountdomain.LedgerAccount {
	t.Helper()
	l, err := f.accounts.CreateLedger(context.Background(), accountdomain.CreateLedgerRequest{
		Name: name, GroupID: g.ID.String(), OpeningBalanceDate: "2024-01-01",
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) post(t *testing.T, date string, dr, cr accountdomain.LedgerAccount, amount string) voucherdomain.Voucher {
	t.Helper()
	v, err := f.vouchers.PostVoucher(context.Background(), voucherdomain.PostVoucherRequest{
		Type: "journal",
		Date: date,
		Entries: []voucherdomain.EntryInput{
			{LedgerID: dr.ID.String(), Debit: decimal.RequireFromString(amount)},
			{LedgerID: cr.ID.String(), Credit: decimal.RequireFromString(amount)},
		},
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return v
}

func TestTrialBalanceAfterCapitalIntroduced(t *testing.T) {
	f := setup(t)
	f.post(t, "2024-04-01", f.cash, f.capital, "1000")

	tb, err := f.svc.TrialBalance(context.Background(), domain.TrialBalanceRequest{AsOf: "2024-04-01"})
	require.NoError(t, err)

	require.Len(t, tb.Entries, 2)
	assert.Equal(t, "Cash", tb.Entries[0].LedgerName)
	assert.Equal(t, "Cash-in-Hand", tb.Entries[0].GroupName)
	assert.Equal(t, f.cash.ID, tb.Entries[0].LedgerID)
	assert.Equal(t, money.Amount(100000), tb.Entries[0].Debit)
	assert.Equal(t, "Capital", tb.Entries[1].LedgerName)
	assert.Equal(t, money.Amount(100000), tb.Entries[1].Credit)
	assert.Equal(t, money.Amount(0), tb.Diff)

	earlier, err := f.svc.TrialBalance(context.Background(), domain.TrialBalanceRequest{AsOf: "2024-03-31"})
	require.NoError(t, err)
	assert.Empty(t, earlier.Entries)
}

func TestTrialBalanceSurfacesBypassedEntries(t *testing.T) {
	f := setup(t)
	v := f.post(t, "2024-04-01", f.cash, f.capital, "1000")

	// an entry written around the posting engine
	require.NoError(t, f.db.Exec(
		`INSERT INTO voucher_entries (id, voucher_id, line_no, ledger_id, direction, amount, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.node.Generate(), v.ID, 3, f.cash.ID, "debit", 5, time.Now().UTC(),
	).Error)

	tb, err := f.svc.TrialBalance(context.Background(), domain.TrialBalanceRequest{AsOf: "2024-04-30"})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(5), tb.Diff)
}

func TestProfitAndLoss(t *testing.T) {
	f := setup(t)
	f.post(t, "2024-03-15", f.cash, f.sales, "300")
	f.post(t, "2024-04-01", f.cash, f.capital, "1000")
	f.post(t, "2024-04-10", f.cash, f.sales, "2000")
	f.post(t, "2024-04-20", f.rent, f.cash, "500")

	pl, err := f.svc.ProfitAndLoss(context.Background(), domain.ProfitAndLossRequest{To: "2024-04-30"})
	require.NoError(t, err)

	assert.Equal(t, "2024-04-01", pl.From.String())
	assert.Equal(t, money.Amount(150000), pl.NetProfit)
	require.Len(t, pl.Income, 1)
	assert.Equal(t, money.Amount(200000), pl.Income[0].Amount)
	require.Len(t, pl.Expenses, 2)
	assert.Equal(t, "Rent", pl.Expenses[0].Name)
	assert.Equal(t, domain.NetProfitLabel, pl.Expenses[1].Name)
	assert.Equal(t, money.Amount(150000), pl.Expenses[1].Amount)
	assert.Equal(t, money.Amount(200000), pl.TotalExpenses)
	assert.Equal(t, money.Amount(200000), pl.TotalIncome)

	march, err := f.svc.ProfitAndLoss(context.Background(), domain.ProfitAndLossRequest{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(30000), march.NetProfit)
}

func TestBalanceSheetBalancesAcrossFiscalYears(t *testing.T) {
	f := setup(t)
	f.post(t, "2024-03-15", f.cash, f.sales, "300")
	f.post(t, "2024-04-01", f.cash, f.capital, "1000")
	f.post(t, "2024-04-10", f.cash, f.sales, "2000")
	f.post(t, "2024-04-20", f.rent, f.cash, "500")

	bs, err := f.svc.BalanceSheet(context.Background(), domain.BalanceSheetRequest{AsOf: "2024-04-30"})
	require.NoError(t, err)

	assert.Equal(t, money.Amount(280000), bs.TotalAssets)
	assert.Equal(t, money.Amount(280000), bs.TotalLiabilities)
	assert.Equal(t, money.Amount(0), bs.Diff)

	lines := map[string]money.Amount{}
	for _, line := range bs.Liabilities {
		lines[line.Name] = line.Amount
	}
	assert.Equal(t, money.Amount(100000), lines["Capital"])
	assert.Equal(t, money.Amount(30000), lines[domain.RetainedEarningsLabel])
	assert.Equal(t, money.Amount(150000), lines[domain.ProfitAndLossLabel])
}

func TestLedgerVouchers(t *testing.T) {
	f := setup(t)
	f.post(t, "2024-04-01", f.cash, f.capital, "1000")
	f.post(t, "2024-04-20", f.rent, f.cash, "500")

	rl, err := f.svc.LedgerVouchers(context.Background(), domain.LedgerVouchersRequest{
		LedgerID: f.cash.ID.String(),
		To:       "2024-04-30",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", rl.From.String())
	require.Len(t, rl.Entries, 2)
	assert.Equal(t, "JV-2024-0001", rl.Entries[0].VoucherNo)
	assert.Equal(t, "journal", rl.Entries[0].VoucherType)
	assert.Equal(t, money.Amount(50000), rl.ClosingBalance)
}

func TestReportRejectsBadDates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.TrialBalance(ctx, domain.TrialBalanceRequest{AsOf: "yesterday"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = f.svc.ProfitAndLoss(ctx, domain.ProfitAndLossRequest{From: "2024-05-01", To: "2024-04-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}
