package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
)

// BalanceTolerance is the largest debit/credit difference, in minor units,
// a voucher may carry and still post.
const BalanceTolerance int64 = 1

type EntryInput struct {
	LedgerID string          `json:"ledger_id"`
	Debit    decimal.Decimal `json:"debit"`
	Credit   decimal.Decimal `json:"credit"`
}

type PostVoucherRequest struct {
	Type           string       `json:"type" binding:"required"`
	Date           string       `json:"date" binding:"required"`
	Narration      string       `json:"narration"`
	ReferenceType  string       `json:"reference_type"`
	ReferenceID    string       `json:"reference_id"`
	Entries        []EntryInput `json:"entries"`
	IdempotencyKey string       `json:"-"`
}

type ReverseVoucherRequest struct {
	Date      string `json:"date"`
	Narration string `json:"narration"`
}

type ListVoucherRequest struct {
	pagination.Pagination
	From     string `form:"from"`
	To       string `form:"to"`
	Type     string `form:"type"`
	LedgerID string `form:"ledger_id"`
}

type ListVoucherResponse struct {
	Vouchers []Voucher           `json:"vouchers"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	PostVoucher(ctx context.Context, req PostVoucherRequest) (Voucher, error)
	ReverseVoucher(ctx context.Context, id string, req ReverseVoucherRequest) (Voucher, error)
	GetVoucher(ctx context.Context, id string) (Voucher, error)
	ListVouchers(ctx context.Context, req ListVoucherRequest) (ListVoucherResponse, error)
}
