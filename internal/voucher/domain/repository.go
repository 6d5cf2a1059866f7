package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Type     Type
	LedgerID *snowflake.ID
	Cursor   *Cursor
	Limit    int
}

// Cursor is the day book position: date, then created_at, then id, all descending.
type Cursor struct {
	Date      time.Time
	CreatedAt time.Time
	ID        snowflake.ID
}

type Repository interface {
	// NextSequence increments the counter for t and returns the new value.
	// It must run inside the transaction that inserts the voucher.
	NextSequence(ctx context.Context, db *gorm.DB, t Type, now time.Time) (int64, error)
	EnsureSequences(ctx context.Context, db *gorm.DB, types []Type, now time.Time) error

	Insert(ctx context.Context, db *gorm.DB, voucher *Voucher) error
	InsertEntries(ctx context.Context, db *gorm.DB, entries []Entry) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Voucher, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Voucher, error)
	FindReversal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Voucher, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Voucher, error)
	ListEntries(ctx context.Context, db *gorm.DB, voucherIDs []snowflake.ID) ([]Entry, error)
}
