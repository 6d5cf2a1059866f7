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
	"github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"github.com/smallbiznis/bookkeeper/internal/balance/repository"
	"github.com/smallbiznis/bookkeeper/internal/balance/service"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	voucherrepo "github.com/smallbiznis/bookkeeper/internal/voucher/repository"
	voucherservice "github.com/smallbiznis/bookkeeper/internal/voucher/service"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	accounts accountdomain.Service
	vouchers voucherdomain.Service
	clock    *clock.FakeClock

	cash, bank, capital, sales accountdomain.LedgerAccount
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

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, GenID: node, Repo: auditrepo.Provide(),
	})
	f := &fixture{
		clock: clk,
		accounts: accountservice.New(accountservice.Params{
			DB: db, Log: zap.NewNop(), Clock: clk, GenID: node, Repo: accountrepo.Provide(), AuditSvc: audit,
		}),
		vouchers: voucherservice.New(voucherservice.Params{
			DB:          db,
			Log:         zap.NewNop(),
			Clock:       clk,
			GenID:       node,
			Books:       config.NewStaticBooksConfigHolder(config.DefaultBooksConfig()),
			Repo:        voucherrepo.Provide(),
			AccountRepo: accountrepo.Provide(),
			AuditSvc:    audit,
		}),
		svc: service.New(service.Params{
			DB: db, Log: zap.NewNop(), Clock: clk, Repo: repository.Provide(), AccountRepo: accountrepo.Provide(),
		}),
	}

	assets := f.group(t, "Current Assets", accountdomain.GroupAsset)
	capital := f.group(t, "Capital Account", accountdomain.GroupCapital)
	income := f.group(t, "Sales Accounts", accountdomain.GroupIncome)

	f.cash = f.ledger(t, accountdomain.CreateLedgerRequest{
		Name:               "Cash",
		GroupID:            assets.ID.String(),
		OpeningBalance:     decimal.RequireFromString("100"),
		OpeningBalanceDate: "2024-04-01",
	})
	f.bank = f.ledger(t, accountdomain.CreateLedgerRequest{Name: "Bank", GroupID: assets.ID.String()})
	f.capital = f.ledger(t, accountdomain.CreateLedgerRequest{Name: "Capital", GroupID: capital.ID.String()})
	f.sales = f.ledger(t, accountdomain.CreateLedgerRequest{Name: "Sales", GroupID: income.ID.String()})
	return f
}

func (f *fixture) group(t *testing.T, name string, typ accountdomain.GroupType) accountdomain.AccountGroup {
	t.Helper()
	g, err := f.accounts.CreateGroup(context.Background(), accountdomain.CreateGroupRequest{Name: name, Type: typ})
	require.NoError(t, err)
	return g
}

func (f *fixture) ledger(t *testing.T, req accountdomain.CreateLedgerRequest) accountdomain.LedgerAccount {
	t.Helper()
	l, err := f.accounts.CreateLedger(context.Background(), req)
	require.NoError(t, err)
	return l
}

func (f *fixture) post(t *testing.T, date, narration string, dr, cr accountdomain.LedgerAccount, amount string) voucherdomain.Voucher {
	t.Helper()
	v, err := f.vouchers.PostVoucher(context.Background(), voucherdomain.PostVoucherRequest{
		Type:      "journal",
		Date:      date,
		Narration: narration,
		Entries: []voucherdomain.EntryInput{
			{LedgerID: dr.ID.String(), Debit: decimal.RequireFromString(amount)},
			{LedgerID: cr.ID.String(), Credit: decimal.RequireFromString(amount)},
		},
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return v
}

// seedBooks posts:
//
//	04-01 Dr Cash 1000 / Cr Capital 1000
//	04-05 Dr Cash 200  / Cr Sales 200
//	04-10 Dr Bank 300  / Cr Cash 300
func (f *fixture) seedBooks(t *testing.T) {
	f.post(t, "2024-04-01", "capital", f.cash, f.capital, "1000")
	f.post(t, "2024-04-05", "cash sale", f.cash, f.sales, "200")
	f.post(t, "2024-04-10", "deposit", f.bank, f.cash, "300")
}

func (f *fixture) balance(t *testing.T, l accountdomain.LedgerAccount, asOf string) money.Amount {
	t.Helper()
	b, err := f.svc.LedgerBalance(context.Background(), domain.LedgerBalanceRequest{LedgerID: l.ID.String(), AsOf: asOf})
	require.NoError(t, err)
	return b.Balance
}

func TestLedgerBalance(t *testing.T) {
	f := setup(t)
	f.seedBooks(t)

	assert.Equal(t, money.Amount(10000), f.balance(t, f.cash, "2024-03-31"))
	assert.Equal(t, money.Amount(110000), f.balance(t, f.cash, "2024-04-01"))
	assert.Equal(t, money.Amount(130000), f.balance(t, f.cash, "2024-04-05"))
	assert.Equal(t, money.Amount(100000), f.balance(t, f.cash, "2024-04-10"))
	assert.Equal(t, money.Amount(100000), f.balance(t, f.capital, "2024-04-30"))
	assert.Equal(t, money.Amount(20000), f.balance(t, f.sales, "2024-04-30"))

	b, err := f.svc.LedgerBalance(context.Background(), domain.LedgerBalanceRequest{LedgerID: f.capital.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30", b.AsOf.String())
	assert.Equal(t, accountdomain.SideCredit, b.NormalSide)
	assert.Equal(t, money.Amount(0), b.Debit)
	assert.Equal(t, money.Amount(100000), b.Credit)
}

func TestLedgerBalanceDifferenceEqualsPeriodMovement(t *testing.T) {
	f := setup(t)
	f.seedBooks(t)

	dates := []string{"2024-03-31", "2024-04-01", "2024-04-04", "2024-04-05", "2024-04-10", "2024-04-30"}
	err := f.svc.Snapshot(context.Background(), func(r domain.Reader) error {
		for i := range dates {
			for j := i; j < len(dates); j++ {
				d1, _ := calendar.Parse(dates[i])
				d2, _ := calendar.Parse(dates[j])

				b1, err := r.Balances(context.Background(), d1)
				require.NoError(t, err)
				b2, err := r.Balances(context.Background(), d2)
				require.NoError(t, err)
				moves, err := r.Movements(context.Background(), d1.AddDate(0, 0, 1), d2)
				require.NoError(t, err)

				for _, l := range []accountdomain.LedgerAccount{f.cash, f.bank, f.capital, f.sales} {
					assert.Equal(t, b2[l.ID]-b1[l.ID], moves[l.ID], "%s %s..%s", l.Name, dates[i], dates[j])
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunningLedger(t *testing.T) {
	f := setup(t)
	f.seedBooks(t)
	ctx := context.Background()

	rl, err := f.svc.RunningLedger(ctx, domain.RunningLedgerRequest{
		LedgerID: f.cash.ID.String(),
		From:     "2024-04-02",
		To:       "2024-04-10",
	})
	require.NoError(t, err)

	assert.Equal(t, money.Amount(110000), rl.OpeningBalance)
	require.Len(t, rl.Entries, 2)
	assert.Equal(t, "cash sale", rl.Entries[0].Narration)
	assert.Equal(t, money.Amount(20000), rl.Entries[0].Debit)
	assert.Equal(t, money.Amount(130000), rl.Entries[0].RunningBalance)
	assert.Equal(t, "deposit", rl.Entries[1].Narration)
	assert.Equal(t, money.Amount(30000), rl.Entries[1].Credit)
	assert.Equal(t, money.Amount(100000), rl.Entries[1].RunningBalance)
	assert.Equal(t, money.Amount(20000), rl.TotalDebit)
	assert.Equal(t, money.Amount(30000), rl.TotalCredit)
	assert.Equal(t, f.balance(t, f.cash, "2024-04-10"), rl.ClosingBalance)
}

func TestRunningLedgerEmptyPeriod(t *testing.T) {
	f := setup(t)
	f.seedBooks(t)

	rl, err := f.svc.RunningLedger(context.Background(), domain.RunningLedgerRequest{
		LedgerID: f.bank.ID.String(),
		From:     "2024-04-11",
		To:       "2024-04-20",
	})
	require.NoError(t, err)
	assert.Empty(t, rl.Entries)
	assert.Equal(t, money.Amount(30000), rl.OpeningBalance)
	assert.Equal(t, rl.OpeningBalance, rl.ClosingBalance)
}

func TestRunningLedgerOrdersByDateThenPostingTime(t *testing.T) {
	f := setup(t)

	f.post(t, "2024-04-03", "later date", f.cash, f.sales, "5")
	f.post(t, "2024-04-02", "first on the 2nd", f.cash, f.sales, "1")
	f.post(t, "2024-04-02", "second on the 2nd", f.sales, f.cash, "2")

	rl, err := f.svc.RunningLedger(context.Background(), domain.RunningLedgerRequest{
		LedgerID: f.cash.ID.String(),
		From:     "2024-04-01",
		To:       "2024-04-30",
	})
	require.NoError(t, err)
	require.Len(t, rl.Entries, 3)

	narrations := []string{rl.Entries[0].Narration, rl.Entries[1].Narration, rl.Entries[2].Narration}
	assert.Equal(t, []string{"first on the 2nd", "second on the 2nd", "later date"}, narrations)
	assert.Equal(t, money.Amount(10100), rl.Entries[0].RunningBalance)
	assert.Equal(t, money.Amount(9900), rl.Entries[1].RunningBalance)
	assert.Equal(t, money.Amount(10400), rl.Entries[2].RunningBalance)
}

func TestBalanceErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.LedgerBalance(ctx, domain.LedgerBalanceRequest{LedgerID: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.LedgerBalance(ctx, domain.LedgerBalanceRequest{LedgerID: "42"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.LedgerBalance(ctx, domain.LedgerBalanceRequest{LedgerID: f.cash.ID.String(), AsOf: "2024-13-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = f.svc.RunningLedger(ctx, domain.RunningLedgerRequest{
		LedgerID: f.cash.ID.String(), From: "2024-04-10", To: "2024-04-01",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}
