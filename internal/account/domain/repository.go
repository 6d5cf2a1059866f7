package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListLedgerFilter struct {
	GroupID   *snowflake.ID
	GroupType GroupType
	IsActive  *bool
	Search    string
	SortBy    string
	OrderBy   string
}

type Repository interface {
	InsertGroup(ctx context.Context, db *gorm.DB, group *AccountGroup) error
	FindGroupByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AccountGroup, error)
	FindGroupByName(ctx context.Context, db *gorm.DB, name string) (*AccountGroup, error)
	ListGroups(ctx context.Context, db *gorm.DB) ([]AccountGroup, error)

	InsertLedger(ctx context.Context, db *gorm.DB, ledger *Ledger) error
	UpdateLedger(ctx context.Context, db *gorm.DB, ledger *Ledger) error
	DeleteLedger(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindLedgerByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LedgerAccount, error)
	FindLedgerByCode(ctx context.Context, db *gorm.DB, code string) (*LedgerAccount, error)
	LockLedgers(ctx context.Context, db *gorm.DB, ids []snowflake.ID, strength string) error
	FindLedgersByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]LedgerAccount, error)
	ListLedgers(ctx context.Context, db *gorm.DB, filter ListLedgerFilter) ([]LedgerAccount, error)
	CountPostings(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID) (int64, error)
}
