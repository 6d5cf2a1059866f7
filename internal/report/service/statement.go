package service

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/report/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
)

var groupOrder = map[accountdomain.GroupType]int{
	accountdomain.GroupAsset:     0,
	accountdomain.GroupLiability: 1,
	accountdomain.GroupCapital:   2,
	accountdomain.GroupIncome:    3,
	accountdomain.GroupExpense:   4,
}

// sortAccounts orders by group type, then group name, then ledger name.
func sortAccounts(accounts []accountdomain.LedgerAccount) []accountdomain.LedgerAccount {
	sorted := append([]accountdomain.LedgerAccount(nil), accounts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if groupOrder[a.GroupType] != groupOrder[b.GroupType] {
			return groupOrder[a.GroupType] < groupOrder[b.GroupType]
		}
		if a.GroupName != b.GroupName {
			return a.GroupName < b.GroupName
		}
		return a.Name < b.Name
	})
	return sorted
}

func buildTrialBalance(asOf time.Time, accounts []accountdomain.LedgerAccount, balances map[snowflake.ID]int64) domain.TrialBalance {
	report := domain.TrialBalance{
		AsOf:    calendar.NewDate(asOf),
		Entries: []domain.TrialBalanceLine{},
	}

	var totalDebit, totalCredit int64
	for _, account := range sortAccounts(accounts) {
		balance := balances[account.ID]
		if balance == 0 {
			continue
		}
		debit, credit := accountdomain.Columns(account.NormalSide(), balance)
		totalDebit += debit
		totalCredit += credit
		report.Entries = append(report.Entries, domain.TrialBalanceLine{
			LedgerID:   account.ID,
			LedgerName: account.Name,
			GroupName:  account.GroupName,
			GroupType:  account.GroupType,
			Inactive:   !account.IsActive,
			Debit:      money.Amount(debit),
			Credit:     money.Amount(credit),
		})
	}

	report.TotalDebit = money.Amount(totalDebit)
	report.TotalCredit = money.Amount(totalCredit)
	report.Diff = money.Amount(totalDebit - totalCredit)
	return report
}

// statementLines lists every account of type typ with a non-zero amount.
func statementLines(accounts []accountdomain.LedgerAccount, amounts map[snowflake.ID]int64, types ...accountdomain.GroupType) ([]domain.StatementLine, int64) {
	lines := []domain.StatementLine{}
	var total int64
	for _, account := range sortAccounts(accounts) {
		if !hasType(account.GroupType, types) {
			continue
		}
		amount := amounts[account.ID]
		if amount == 0 {
			continue
		}
		id := account.ID
		lines = append(lines, domain.StatementLine{
			Kind:      domain.LineLedger,
			LedgerID:  &id,
			Name:      account.Name,
			GroupName: account.GroupName,
			Amount:    money.Amount(amount),
		})
		total += amount
	}
	return lines, total
}

func hasType(t accountdomain.GroupType, types []accountdomain.GroupType) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}

// netProfit is income minus expense over the given per-ledger amounts.
func netProfit(accounts []accountdomain.LedgerAccount, amounts map[snowflake.ID]int64) int64 {
	var net int64
	for _, account := range accounts {
		switch account.GroupType {
		case accountdomain.GroupIncome:
			net += amounts[account.ID]
		case accountdomain.GroupExpense:
			net -= amounts[account.ID]
		}
	}
	return net
}

func buildProfitAndLoss(from, to time.Time, accounts []accountdomain.LedgerAccount, movements map[snowflake.ID]int64) domain.ProfitAndLoss {
	income, totalIncome := statementLines(accounts, movements, accountdomain.GroupIncome)
	expenses, totalExpenses := statementLines(accounts, movements, accountdomain.GroupExpense)
	net := totalIncome - totalExpenses

	// The plug row evens out the two sides and is never posted.
	switch {
	case net > 0:
		expenses = append(expenses, domain.StatementLine{
			Kind:   domain.LineNetProfit,
			Name:   domain.NetProfitLabel,
			Amount: money.Amount(net),
		})
		totalExpenses += net
	case net < 0:
		income = append(income, domain.StatementLine{
			Kind:   domain.LineNetLoss,
			Name:   domain.NetLossLabel,
			Amount: money.Amount(-net),
		})
		totalIncome -= net
	}

	return domain.ProfitAndLoss{
		From:          calendar.NewDate(from),
		To:            calendar.NewDate(to),
		Expenses:      expenses,
		Income:        income,
		TotalExpenses: money.Amount(totalExpenses),
		TotalIncome:   money.Amount(totalIncome),
		NetProfit:     money.Amount(net),
	}
}

// buildBalanceSheet takes balances as of asOf, the income and expense
// movement since the fiscal year start, and the balances on the day before
// the fiscal year began.
func buildBalanceSheet(asOf time.Time, accounts []accountdomain.LedgerAccount, balances, yearMovements, priorBalances map[snowflake.ID]int64) domain.BalanceSheet {
	assets, totalAssets := statementLines(accounts, balances, accountdomain.GroupAsset)
	liabilities, totalLiabilities := statementLines(accounts, balances, accountdomain.GroupLiability, accountdomain.GroupCapital)

	if retained := netProfit(accounts, priorBalances); retained != 0 {
		liabilities = append(liabilities, domain.StatementLine{
			Kind:      domain.LineRetainedEarnings,
			Name:      domain.RetainedEarningsLabel,
			GroupName: domain.ReservesGroupName,
			Amount:    money.Amount(retained),
		})
		totalLiabilities += retained
	}

	current := netProfit(accounts, yearMovements)
	liabilities = append(liabilities, domain.StatementLine{
		Kind:      domain.LineProfitAndLoss,
		Name:      domain.ProfitAndLossLabel,
		GroupName: domain.ReservesGroupName,
		Amount:    money.Amount(current),
	})
	totalLiabilities += current

	return domain.BalanceSheet{
		AsOf:             calendar.NewDate(asOf),
		Liabilities:      liabilities,
		Assets:           assets,
		TotalLiabilities: money.Amount(totalLiabilities),
		TotalAssets:      money.Amount(totalAssets),
		Diff:             money.Amount(totalAssets - totalLiabilities),
	}
}

// subtract returns a - b per ledger.
func subtract(a, b map[snowflake.ID]int64) map[snowflake.ID]int64 {
	out := make(map[snowflake.ID]int64, len(a))
	for id, v := range a {
		out[id] = v - b[id]
	}
	return out
}
