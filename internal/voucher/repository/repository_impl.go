package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeper/pkg/db/option"
	"gorm.io/gorm"
)

const voucherColumns = `id, voucher_no, voucher_type, sequence_no, voucher_date, narration,
	reference_type, reference_id, reversal_of, idempotency_key, idempotency_hash, total_amount, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureSequences(ctx context.Context, db *gorm.DB, types []domain.Type, now time.Time) error {
	for _, t := range types {
		if err := ensureSequence(ctx, db, t, now); err != nil {
			return err
		}
	}
	return nil
}

func ensureSequence(ctx context.Context, db *gorm.DB, t domain.Type, now time.Time) error {
	query := `INSERT INTO voucher_sequences (voucher_type, last_number, updated_at)
		VALUES (?, 0, ?) ON CONFLICT (voucher_type) DO NOTHING`
	if db.Dialector.Name() == "mysql" {
		query = `INSERT IGNORE INTO voucher_sequences (voucher_type, last_number, updated_at) VALUES (?, 0, ?)`
	}
	return db.WithContext(ctx).Exec(query, t, now).Error
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, t domain.Type, now time.Time) (int64, error) {
	if err := ensureSequence(ctx, db, t, now); err != nil {
		return 0, err
	}

	var next int64
	if db.Dialector.Name() == "mysql" {
		if err := db.WithContext(ctx).Exec(
			`UPDATE voucher_sequences SET last_number = LAST_INSERT_ID(last_number + 1), updated_at = ?
			 WHERE voucher_type = ?`,
			now, t,
		).Error; err != nil {
			return 0, err
		}
		err := db.WithContext(ctx).Raw(`SELECT LAST_INSERT_ID()`).Scan(&next).Error
		return next, err
	}

	// The row lock taken here is held until commit, so concurrent posts of
	// the same type queue behind each other and a rollback returns the number.
	err := db.WithContext(ctx).Raw(
		`UPDATE voucher_sequences SET last_number = last_number + 1, updated_at = ?
		 WHERE voucher_type = ? RETURNING last_number`,
		now, t,
	).Scan(&next).Error
	return next, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, voucher *domain.Voucher) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vouchers (`+voucherColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		voucher.ID,
		voucher.VoucherNo,
		voucher.Type,
		voucher.Sequence,
		voucher.Date,
		voucher.Narration,
		voucher.ReferenceType,
		voucher.ReferenceID,
		voucher.ReversalOf,
		voucher.IdempotencyKey,
		voucher.IdempotencyHash,
		voucher.TotalAmount,
		voucher.CreatedAt,
	).Error
}

func (r *repo) InsertEntries(ctx context.Context, db *gorm.DB, entries []domain.Entry) error {
	for _, entry := range entries {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO voucher_entries (
				id, voucher_id, line_no, ledger_id, direction, amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.VoucherID,
			entry.LineNo,
			entry.LedgerID,
			string(entry.Direction),
			entry.Amount,
			entry.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Voucher, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Voucher, error) {
	return r.findOne(ctx, db, "idempotency_key = ?", key)
}

func (r *repo) FindReversal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Voucher, error) {
	return r.findOne(ctx, db, "reversal_of = ?", id)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.Voucher, error) {
	var voucher domain.Voucher
	err := db.WithContext(ctx).Raw(
		`SELECT `+voucherColumns+` FROM vouchers WHERE `+cond,
		arg,
	).Scan(&voucher).Error
	if err != nil {
		return nil, err
	}
	if voucher.ID == 0 {
		return nil, nil
	}
	return &voucher, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Voucher, error) {
	var vouchers []domain.Voucher
	stmt := db.WithContext(ctx).Model(&domain.Voucher{}).Select(voucherColumns)

	opts := []option.QueryOption{}
	if filter.From != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "voucher_date", Operator: option.GTE, Value: *filter.From}))
	}
	if filter.To != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "voucher_date", Operator: option.LTE, Value: *filter.To}))
	}
	if filter.Type != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "voucher_type", Operator: option.EQ, Value: filter.Type}))
	}
	stmt = option.Apply(stmt, opts...)

	if filter.LedgerID != nil {
		stmt = stmt.Where(
			"EXISTS (SELECT 1 FROM voucher_entries e WHERE e.voucher_id = vouchers.id AND e.ledger_id = ?)",
			*filter.LedgerID,
		)
	}
	if c := filter.Cursor; c != nil {
		stmt = stmt.Where(
			"(voucher_date < ?) OR (voucher_date = ? AND created_at < ?) OR (voucher_date = ? AND created_at = ? AND id < ?)",
			c.Date, c.Date, c.CreatedAt, c.Date, c.CreatedAt, c.ID,
		)
	}

	stmt = stmt.Order("voucher_date desc, created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, voucherIDs []snowflake.ID) ([]domain.Entry, error) {
	if len(voucherIDs) == 0 {
		return nil, nil
	}
	var entries []domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT e.id, e.voucher_id, e.line_no, e.ledger_id, l.name AS ledger_name,
			e.direction, e.amount, e.created_at
		 FROM voucher_entries e
		 LEFT JOIN ledgers l ON l.id = e.ledger_id
		 WHERE e.voucher_id IN ?
		 ORDER BY e.voucher_id, e.line_no`,
		voucherIDs,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
