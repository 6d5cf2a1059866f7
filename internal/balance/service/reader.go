package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"gorm.io/gorm"
)

// reader is bound to the snapshot transaction. Every query it issues sees the
// same committed state.
type reader struct {
	tx          *gorm.DB
	repo        domain.Repository
	accountRepo accountdomain.Repository

	accounts []accountdomain.LedgerAccount
}

func (r *reader) Accounts(ctx context.Context) ([]accountdomain.LedgerAccount, error) {
	if r.accounts != nil {
		return r.accounts, nil
	}
	accounts, err := r.accountRepo.ListLedgers(ctx, r.tx, accountdomain.ListLedgerFilter{})
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []accountdomain.LedgerAccount{}
	}
	r.accounts = accounts
	return accounts, nil
}

func (r *reader) Balances(ctx context.Context, asOf time.Time) (map[snowflake.ID]int64, error) {
	accounts, err := r.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := r.repo.SumUpTo(ctx, r.tx, calendar.Normalize(asOf), nil)
	if err != nil {
		return nil, err
	}

	byLedger := make(map[snowflake.ID]domain.Totals, len(totals))
	for _, t := range totals {
		byLedger[t.LedgerID] = t
	}

	balances := make(map[snowflake.ID]int64, len(accounts))
	for _, account := range accounts {
		t := byLedger[account.ID]
		balances[account.ID] = int64(account.OpeningBalance) +
			accountdomain.SignedAmount(account.NormalSide(), t.Debit, t.Credit)
	}
	return balances, nil
}

func (r *reader) Movements(ctx context.Context, from, to time.Time) (map[snowflake.ID]int64, error) {
	end, err := r.Balances(ctx, to)
	if err != nil {
		return nil, err
	}
	start, err := r.Balances(ctx, calendar.DayBefore(from))
	if err != nil {
		return nil, err
	}

	movements := make(map[snowflake.ID]int64, len(end))
	for id, closing := range end {
		movements[id] = closing - start[id]
	}
	return movements, nil
}

func (r *reader) Running(ctx context.Context, account accountdomain.LedgerAccount, from, to time.Time) (domain.RunningLedger, error) {
	from, to = calendar.Normalize(from), calendar.Normalize(to)
	if from.After(to) {
		return domain.RunningLedger{}, domain.ErrInvalidDateRange
	}

	opening, err := r.balanceOf(ctx, account, calendar.DayBefore(from))
	if err != nil {
		return domain.RunningLedger{}, err
	}
	postings, err := r.repo.ListPostings(ctx, r.tx, account.ID, from, to)
	if err != nil {
		return domain.RunningLedger{}, err
	}

	normal := account.NormalSide()
	result := domain.RunningLedger{
		LedgerID:       account.ID,
		LedgerName:     account.Name,
		GroupName:      account.GroupName,
		NormalSide:     normal,
		From:           calendar.NewDate(from),
		To:             calendar.NewDate(to),
		OpeningBalance: amount(opening),
		Entries:        make([]domain.RunningEntry, 0, len(postings)),
	}

	running := opening
	var totalDebit, totalCredit int64
	for _, p := range postings {
		var debit, credit int64
		if p.Direction == accountdomain.SideDebit {
			debit = p.Amount
		} else {
			credit = p.Amount
		}
		totalDebit += debit
		totalCredit += credit
		running += accountdomain.SignedAmount(normal, debit, credit)

		result.Entries = append(result.Entries, domain.RunningEntry{
			VoucherID:      p.VoucherID,
			VoucherNo:      p.VoucherNo,
			VoucherType:    p.VoucherType,
			Date:           p.VoucherDate,
			Narration:      p.Narration,
			Debit:          amount(debit),
			Credit:         amount(credit),
			RunningBalance: amount(running),
		})
	}

	result.TotalDebit = amount(totalDebit)
	result.TotalCredit = amount(totalCredit)
	result.ClosingBalance = amount(running)
	return result, nil
}

func (r *reader) account(ctx context.Context, id snowflake.ID) (*accountdomain.LedgerAccount, error) {
	account, err := r.accountRepo.FindLedgerByID(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (r *reader) balanceOf(ctx context.Context, account accountdomain.LedgerAccount, asOf time.Time) (int64, error) {
	totals, err := r.repo.SumUpTo(ctx, r.tx, calendar.Normalize(asOf), &account.ID)
	if err != nil {
		return 0, err
	}
	balance := int64(account.OpeningBalance)
	for _, t := range totals {
		balance += accountdomain.SignedAmount(account.NormalSide(), t.Debit, t.Credit)
	}
	return balance, nil
}

func amount(v int64) money.Amount { return money.Amount(v) }
