package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ledgerColumns = `l.id, l.code, l.name, l.group_id, l.is_active, l.opening_balance,
	l.opening_balance_date, l.created_at, l.updated_at, g.name AS group_name, g.type AS group_type`

var sortColumns = map[string]string{
	"name":       "l.name",
	"code":       "l.code",
	"created_at": "l.created_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertGroup(ctx context.Context, db *gorm.DB, group *domain.AccountGroup) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO account_groups (id, name, type, parent_id, is_system, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.Name,
		group.Type,
		group.ParentID,
		group.IsSystem,
		group.CreatedAt,
	).Error
}

func (r *repo) FindGroupByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.AccountGroup, error) {
	var group domain.AccountGroup
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, type, parent_id, is_system, created_at
		 FROM account_groups WHERE id = ?`,
		id,
	).Scan(&group).Error
	if err != nil {
		return nil, err
	}
	if group.ID == 0 {
		return nil, nil
	}
	return &group, nil
}

func (r *repo) FindGroupByName(ctx context.Context, db *gorm.DB, name string) (*domain.AccountGroup, error) {
	var group domain.AccountGroup
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, type, parent_id, is_system, created_at
		 FROM account_groups WHERE LOWER(name) = LOWER(?)`,
		name,
	).Scan(&group).Error
	if err != nil {
		return nil, err
	}
	if group.ID == 0 {
		return nil, nil
	}
	return &group, nil
}

func (r *repo) ListGroups(ctx context.Context, db *gorm.DB) ([]domain.AccountGroup, error) {
	var groups []domain.AccountGroup
	err := db.WithContext(ctx).
		Model(&domain.AccountGroup{}).
		Order("created_at asc, id asc").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repo) InsertLedger(ctx context.Context, db *gorm.DB, ledger *domain.Ledger) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ledgers (
			id, code, name, group_id, is_active, opening_balance,
			opening_balance_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ledger.ID,
		ledger.Code,
		ledger.Name,
		ledger.GroupID,
		ledger.IsActive,
		ledger.OpeningBalance,
		ledger.OpeningBalanceDate,
		ledger.CreatedAt,
		ledger.UpdatedAt,
	).Error
}

func (r *repo) UpdateLedger(ctx context.Context, db *gorm.DB, ledger *domain.Ledger) error {
	return db.WithContext(ctx).Exec(
		`UPDATE ledgers SET
			code = ?, name = ?, group_id = ?, is_active = ?,
			opening_balance = ?, opening_balance_date = ?, updated_at = ?
		 WHERE id = ?`,
		ledger.Code,
		ledger.Name,
		ledger.GroupID,
		ledger.IsActive,
		ledger.OpeningBalance,
		ledger.OpeningBalanceDate,
		ledger.UpdatedAt,
		ledger.ID,
	).Error
}

func (r *repo) DeleteLedger(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM ledgers WHERE id = ?`, id).Error
}

func (r *repo) FindLedgerByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LedgerAccount, error) {
	return r.findOne(ctx, db, "l.id = ?", id)
}

func (r *repo) FindLedgerByCode(ctx context.Context, db *gorm.DB, code string) (*domain.LedgerAccount, error) {
	return r.findOne(ctx, db, "l.code = ?", code)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.LedgerAccount, error) {
	var account domain.LedgerAccount
	err := db.WithContext(ctx).Raw(
		`SELECT `+ledgerColumns+`
		 FROM ledgers l JOIN account_groups g ON g.id = l.group_id
		 WHERE `+cond,
		arg,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// LockLedgers takes row locks on the given ledgers in id order. Posting takes
// SHARE so concurrent posts on one ledger proceed together, while updates,
// activation changes and deletes take UPDATE and wait for them. sqlite has no
// row locks; its single writer serializes the same paths.
func (r *repo) LockLedgers(ctx context.Context, db *gorm.DB, ids []snowflake.ID, strength string) error {
	if len(ids) == 0 {
		return nil
	}
	var locked []snowflake.ID
	return lockLedgersQuery(db.WithContext(ctx), ids, strength).Pluck("id", &locked).Error
}

func lockLedgersQuery(db *gorm.DB, ids []snowflake.ID, strength string) *gorm.DB {
	stmt := db.Table("ledgers").Where("id IN ?", ids).Order("id")
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		stmt = stmt.Clauses(clause.Locking{Strength: strength})
	}
	return stmt
}

func (r *repo) FindLedgersByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.LedgerAccount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []domain.LedgerAccount
	err := db.WithContext(ctx).Raw(
		`SELECT `+ledgerColumns+`
		 FROM ledgers l JOIN account_groups g ON g.id = l.group_id
		 WHERE l.id IN ?`,
		ids,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) ListLedgers(ctx context.Context, db *gorm.DB, filter domain.ListLedgerFilter) ([]domain.LedgerAccount, error) {
	var accounts []domain.LedgerAccount
	stmt := db.WithContext(ctx).
		Table("ledgers AS l").
		Select(ledgerColumns).
		Joins("JOIN account_groups g ON g.id = l.group_id")

	opts := []option.QueryOption{}
	if filter.GroupID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "l.group_id", Operator: option.EQ, Value: *filter.GroupID}))
	}
	if filter.GroupType != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "g.type", Operator: option.EQ, Value: filter.GroupType}))
	}
	if filter.IsActive != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "l.is_active", Operator: option.EQ, Value: *filter.IsActive}))
	}
	stmt = option.Apply(stmt, opts...)

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		stmt = stmt.Where("LOWER(l.name) LIKE ?", "%"+search+"%")
	}

	sort := option.WithQuerySortBy(sortColumns[strings.ToLower(filter.SortBy)], filter.OrderBy, map[string]bool{
		"l.name":       true,
		"l.code":       true,
		"l.created_at": true,
	})
	sort.Default = "l.name"
	stmt = option.Apply(stmt, option.WithSortBy(sort))

	if err := stmt.Order("l.id asc").Scan(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) CountPostings(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM voucher_entries WHERE ledger_id = ?`,
		ledgerID,
	).Scan(&count).Error
	return count, err
}
