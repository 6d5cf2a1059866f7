package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
)

type Type string

const (
	TypeJournal    Type = "journal"
	TypeReceipt    Type = "receipt"
	TypePayment    Type = "payment"
	TypeSales      Type = "sales"
	TypePurchase   Type = "purchase"
	TypeContra     Type = "contra"
	TypeCreditNote Type = "credit_note"
	TypeDebitNote  Type = "debit_note"
)

// Types lists every voucher type; each has its own number series.
var Types = []Type{
	TypeJournal,
	TypeReceipt,
	TypePayment,
	TypeSales,
	TypePurchase,
	TypeContra,
	TypeCreditNote,
	TypeDebitNote,
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Voucher is one posted transaction. Vouchers and their entries are never
// updated or deleted; corrections are new vouchers.
type Voucher struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	VoucherNo       string        `gorm:"type:text;not null;uniqueIndex:ux_vouchers_type_voucher_no,priority:2" json:"voucher_no"`
	Type            Type          `gorm:"column:voucher_type;type:text;not null;uniqueIndex:ux_vouchers_type_sequence,priority:1;uniqueIndex:ux_vouchers_type_voucher_no,priority:1" json:"type"`
	Sequence        int64         `gorm:"column:sequence_no;not null;uniqueIndex:ux_vouchers_type_sequence,priority:2" json:"sequence"`
	Date            calendar.Date `gorm:"column:voucher_date;not null;index" json:"date"`
	Narration       string        `gorm:"type:text;not null" json:"narration"`
	ReferenceType   *string       `gorm:"type:text" json:"reference_type,omitempty"`
	ReferenceID     *string       `gorm:"type:text" json:"reference_id,omitempty"`
	ReversalOf      *snowflake.ID `gorm:"uniqueIndex" json:"reversal_of,omitempty"`
	IdempotencyKey  *string       `gorm:"type:text;uniqueIndex" json:"-"`
	IdempotencyHash *string       `gorm:"type:text" json:"-"`
	TotalAmount     money.Amount  `gorm:"type:bigint;not null" json:"total_amount"`
	CreatedAt       time.Time     `gorm:"not null;index" json:"created_at"`
	Entries         []Entry       `gorm:"-" json:"entries"`
}

func (Voucher) TableName() string { return "vouchers" }

// Entry is one leg of a voucher. Amount is always positive; Direction says
// which column it belongs to.
type Entry struct {
	ID         snowflake.ID       `gorm:"primaryKey" json:"id"`
	VoucherID  snowflake.ID       `gorm:"not null;index" json:"voucher_id"`
	LineNo     int                `gorm:"not null" json:"line_no"`
	LedgerID   snowflake.ID       `gorm:"not null;index" json:"ledger_id"`
	LedgerName string             `gorm:"->;-:migration" json:"ledger_name,omitempty"`
	Direction  accountdomain.Side `gorm:"type:text;not null" json:"direction"`
	Amount     money.Amount       `gorm:"type:bigint;not null" json:"amount"`
	CreatedAt  time.Time          `gorm:"not null" json:"created_at"`
}

func (Entry) TableName() string { return "voucher_entries" }

// Debit and Credit split the entry back into the two-column form.
func (e Entry) Debit() int64 {
	if e.Direction == accountdomain.SideDebit {
		return int64(e.Amount)
	}
	return 0
}

func (e Entry) Credit() int64 {
	if e.Direction == accountdomain.SideCredit {
		return int64(e.Amount)
	}
	return 0
}

// Sequence is the per-type counter row. LastNumber is the most recently
// assigned number; it only moves inside the transaction that commits the voucher.
type Sequence struct {
	VoucherType Type      `gorm:"primaryKey;type:text" json:"voucher_type"`
	LastNumber  int64     `gorm:"not null" json:"last_number"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Sequence) TableName() string { return "voucher_sequences" }
