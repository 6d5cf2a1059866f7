package domain

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
)

var (
	ErrInvalidType           = errors.New("invalid_voucher_type")
	ErrInvalidDate           = calendar.ErrInvalidDate
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrInvalidPageToken      = errors.New("invalid_page_token")

	ErrEmptyVoucher      = errors.New("empty_voucher")
	ErrInvalidEntry      = errors.New("invalid_entry")
	ErrUnbalancedVoucher = errors.New("unbalanced_voucher")

	ErrAlreadyReversed      = errors.New("already_reversed")
	ErrIdempotencyKeyReused = errors.New("idempotency_key_reused")
	ErrNotFound             = errors.New("not_found")
)

// Reasons attached to an EntryError.
const (
	ReasonBothSides       = "both_sides"
	ReasonNoAmount        = "no_amount"
	ReasonNegativeAmount  = "negative_amount"
	ReasonTooPrecise      = "too_precise"
	ReasonInvalidLedgerID = "invalid_ledger_id"
	ReasonLedgerNotFound  = "ledger_not_found"
	ReasonLedgerInactive  = "ledger_inactive"
)

// EntryError points at the offending entry. Index is zero based.
type EntryError struct {
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entries[%d]: %s: %s", e.Index, e.Err, e.Reason)
}

func (e *EntryError) Unwrap() error { return e.Err }

// UnbalancedError reports the column totals of a rejected voucher.
type UnbalancedError struct {
	Debit  int64
	Credit int64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("%s: debit %s, credit %s", ErrUnbalancedVoucher, money.Format(e.Debit), money.Format(e.Credit))
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalancedVoucher }
