package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	voucherrepo "github.com/smallbiznis/bookkeeper/internal/voucher/repository"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"gorm.io/gorm"
)

type group struct {
	Name   string
	Type   accountdomain.GroupType
	Parent string
}

// Groups is the system chart of accounts, primaries first so parents exist
// before their children.
var Groups = []group{
	{"Assets", accountdomain.GroupAsset, ""},
	{"Liabilities", accountdomain.GroupLiability, ""},
	{"Capital", accountdomain.GroupCapital, ""},
	{"Income", accountdomain.GroupIncome, ""},
	{"Expenses", accountdomain.GroupExpense, ""},

	{"Current Assets", accountdomain.GroupAsset, "Assets"},
	{"Fixed Assets", accountdomain.GroupAsset, "Assets"},
	{"Investments", accountdomain.GroupAsset, "Assets"},
	{"Misc. Expenses (ASSET)", accountdomain.GroupAsset, "Assets"},
	{"Suspense A/c", accountdomain.GroupAsset, "Assets"},

	{"Bank Accounts", accountdomain.GroupAsset, "Current Assets"},
	{"Cash-in-Hand", accountdomain.GroupAsset, "Current Assets"},
	{"Stock-in-Hand", accountdomain.GroupAsset, "Current Assets"},
	{"Sundry Debtors", accountdomain.GroupAsset, "Current Assets"},
	{"Loans & Advances (Asset)", accountdomain.GroupAsset, "Current Assets"},
	{"Deposits (Asset)", accountdomain.GroupAsset, "Current Assets"},

	{"Capital Account", accountdomain.GroupCapital, "Capital"},
	{"Reserves & Surplus", accountdomain.GroupCapital, "Capital"},

	{"Current Liabilities", accountdomain.GroupLiability, "Liabilities"},
	{"Loans (Liability)", accountdomain.GroupLiability, "Liabilities"},
	{"Branch / Divisions", accountdomain.GroupLiability, "Liabilities"},

	{"Duties & Taxes", accountdomain.GroupLiability, "Current Liabilities"},
	{"Provisions", accountdomain.GroupLiability, "Current Liabilities"},
	{"Sundry Creditors", accountdomain.GroupLiability, "Current Liabilities"},

	{"Bank OD A/c", accountdomain.GroupLiability, "Loans (Liability)"},
	{"Secured Loans", accountdomain.GroupLiability, "Loans (Liability)"},
	{"Unsecured Loans", accountdomain.GroupLiability, "Loans (Liability)"},

	{"Sales Accounts", accountdomain.GroupIncome, "Income"},
	{"Direct Income", accountdomain.GroupIncome, "Income"},
	{"Indirect Income", accountdomain.GroupIncome, "Income"},

	{"Purchase Accounts", accountdomain.GroupExpense, "Expenses"},
	{"Direct Expenses", accountdomain.GroupExpense, "Expenses"},
	{"Indirect Expenses", accountdomain.GroupExpense, "Expenses"},
}

const (
	cashLedgerName  = "Cash"
	cashLedgerCode  = "cash"
	cashLedgerGroup = "Cash-in-Hand"
)

// EnsureDefaults seeds the system groups, the Cash ledger and one number
// series per voucher type. It is safe to run on every start.
func EnsureDefaults(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		var err error
		node, err = snowflake.NewNode(1)
		if err != nil {
			return err
		}
	}

	now = now.UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := ensureGroups(ctx, tx, node, now)
		if err != nil {
			return err
		}
		if err := ensureCashLedger(ctx, tx, node, ids[cashLedgerGroup], now); err != nil {
			return err
		}
		return voucherrepo.Provide().EnsureSequences(ctx, tx, voucherdomain.Types, now)
	})
}

func ensureGroups(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) (map[string]snowflake.ID, error) {
	ids := make(map[string]snowflake.ID, len(Groups))
	for _, g := range Groups {
		var existing snowflake.ID
		if err := tx.WithContext(ctx).Raw(
			`SELECT id FROM account_groups WHERE name = ?`, g.Name,
		).Scan(&existing).Error; err != nil {
			return nil, err
		}
		if existing != 0 {
			ids[g.Name] = existing
			continue
		}

		var parentID *snowflake.ID
		if g.Parent != "" {
			if id, ok := ids[g.Parent]; ok {
				parentID = &id
			}
		}
		id := node.Generate()
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO account_groups (id, name, type, parent_id, is_system, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, g.Name, g.Type, parentID, true, now,
		).Error; err != nil {
			return nil, err
		}
		ids[g.Name] = id
	}
	return ids, nil
}

func ensureCashLedger(ctx context.Context, tx *gorm.DB, node *snowflake.Node, groupID snowflake.ID, now time.Time) error {
	if groupID == 0 {
		return nil
	}
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM ledgers WHERE code = ?`, cashLedgerCode,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO ledgers (
			id, code, name, group_id, is_active, opening_balance,
			opening_balance_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), cashLedgerCode, cashLedgerName, groupID, true, 0,
		calendar.NewDate(now), now, now,
	).Error
}
