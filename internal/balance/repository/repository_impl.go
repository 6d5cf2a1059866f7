package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) SumUpTo(ctx context.Context, db *gorm.DB, asOf time.Time, ledgerID *snowflake.ID) ([]domain.Totals, error) {
	query := `SELECT e.ledger_id AS ledger_id,
			CAST(COALESCE(SUM(CASE WHEN e.direction = 'debit' THEN e.amount ELSE 0 END), 0) AS BIGINT) AS debit,
			CAST(COALESCE(SUM(CASE WHEN e.direction = 'credit' THEN e.amount ELSE 0 END), 0) AS BIGINT) AS credit
		FROM voucher_entries e
		JOIN vouchers v ON v.id = e.voucher_id
		WHERE v.voucher_date <= ?`
	args := []any{asOf}
	if ledgerID != nil {
		query += ` AND e.ledger_id = ?`
		args = append(args, *ledgerID)
	}
	query += ` GROUP BY e.ledger_id`

	var totals []domain.Totals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) ListPostings(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, from, to time.Time) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := db.WithContext(ctx).Raw(
		`SELECT v.id AS voucher_id, v.voucher_no, v.voucher_type, v.voucher_date, v.narration,
			v.created_at, e.line_no, e.direction, e.amount
		 FROM voucher_entries e
		 JOIN vouchers v ON v.id = e.voucher_id
		 WHERE e.ledger_id = ? AND v.voucher_date >= ? AND v.voucher_date <= ?
		 ORDER BY v.voucher_date ASC, v.created_at ASC, v.id ASC, e.line_no ASC`,
		ledgerID, from, to,
	).Scan(&postings).Error
	if err != nil {
		return nil, err
	}
	return postings, nil
}
