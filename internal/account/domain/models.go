package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
)

type GroupType string

const (
	GroupAsset     GroupType = "asset"
	GroupLiability GroupType = "liability"
	GroupCapital   GroupType = "capital"
	GroupIncome    GroupType = "income"
	GroupExpense   GroupType = "expense"
)

func (t GroupType) Valid() bool {
	switch t {
	case GroupAsset, GroupLiability, GroupCapital, GroupIncome, GroupExpense:
		return true
	}
	return false
}

// NormalSide is the side on which a balance of this group type is positive.
func (t GroupType) NormalSide() Side {
	switch t {
	case GroupAsset, GroupExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// AccountGroup is a taxonomy bucket. Subgroups always share their parent's type.
type AccountGroup struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Type      GroupType     `gorm:"type:text;not null" json:"type"`
	ParentID  *snowflake.ID `gorm:"index" json:"parent_id,omitempty"`
	IsSystem  bool          `gorm:"not null" json:"is_system"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

func (AccountGroup) TableName() string { return "account_groups" }

// Ledger is a named account under exactly one group. OpeningBalance is signed
// on the group's normal side.
type Ledger struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code               string        `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name               string        `gorm:"type:text;not null" json:"name"`
	GroupID            snowflake.ID  `gorm:"not null;index" json:"group_id"`
	IsActive           bool          `gorm:"not null" json:"is_active"`
	OpeningBalance     money.Amount  `gorm:"type:bigint;not null" json:"opening_balance"`
	OpeningBalanceDate calendar.Date `gorm:"not null" json:"opening_balance_date"`
	CreatedAt          time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null" json:"updated_at"`
}

func (Ledger) TableName() string { return "ledgers" }

// LedgerAccount is a ledger joined with the group facts every balance needs.
type LedgerAccount struct {
	Ledger
	GroupName string    `json:"group_name"`
	GroupType GroupType `json:"group_type"`
}

func (a LedgerAccount) NormalSide() Side {
	return a.GroupType.NormalSide()
}

// GroupNode is one node of the chart of accounts tree.
type GroupNode struct {
	AccountGroup
	Ledgers   []LedgerAccount `json:"ledgers"`
	Subgroups []GroupNode     `json:"subgroups"`
}
