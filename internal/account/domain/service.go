package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type CreateGroupRequest struct {
	Name     string    `json:"name" binding:"required"`
	Type     GroupType `json:"type"`
	ParentID string    `json:"parent_id"`
	IsSystem bool      `json:"-"`
}

type CreateLedgerRequest struct {
	Name               string          `json:"name" binding:"required"`
	GroupID            string          `json:"group_id" binding:"required"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceSide Side            `json:"opening_balance_side"`
	OpeningBalanceDate string          `json:"opening_balance_date"`
}

// UpdateLedgerRequest changes only the fields that are set.
type UpdateLedgerRequest struct {
	Name               *string          `json:"name"`
	GroupID            *string          `json:"group_id"`
	OpeningBalance     *decimal.Decimal `json:"opening_balance"`
	OpeningBalanceSide *Side            `json:"opening_balance_side"`
	OpeningBalanceDate *string          `json:"opening_balance_date"`
}

type ListLedgerRequest struct {
	GroupID   string `form:"group_id"`
	GroupType string `form:"group_type"`
	IsActive  *bool  `form:"is_active"`
	Search    string `form:"q"`
	SortBy    string `form:"sort_by"`
	OrderBy   string `form:"order_by"`
}

type Service interface {
	CreateGroup(ctx context.Context, req CreateGroupRequest) (AccountGroup, error)
	GetGroup(ctx context.Context, id string) (AccountGroup, error)
	ListGroups(ctx context.Context) ([]AccountGroup, error)
	ChartOfAccounts(ctx context.Context) ([]GroupNode, error)

	CreateLedger(ctx context.Context, req CreateLedgerRequest) (LedgerAccount, error)
	GetLedger(ctx context.Context, id string) (LedgerAccount, error)
	ListLedgers(ctx context.Context, req ListLedgerRequest) ([]LedgerAccount, error)
	UpdateLedger(ctx context.Context, id string, req UpdateLedgerRequest) (LedgerAccount, error)
	ActivateLedger(ctx context.Context, id string) (LedgerAccount, error)
	DeactivateLedger(ctx context.Context, id string) (LedgerAccount, error)
	DeleteLedger(ctx context.Context, id string) error
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidGroupType = errors.New("invalid_group_type")
	ErrInvalidSide      = errors.New("invalid_opening_balance_side")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidGroup     = errors.New("invalid_group")
	ErrDuplicateGroup   = errors.New("duplicate_group")
	ErrDuplicateLedger  = errors.New("duplicate_ledger")
	ErrLedgerHasPosting = errors.New("ledger_has_postings")
	ErrNotFound         = errors.New("not_found")
)
