package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalSide(t *testing.T) {
	assert.Equal(t, SideDebit, GroupAsset.NormalSide())
	assert.Equal(t, SideDebit, GroupExpense.NormalSide())
	assert.Equal(t, SideCredit, GroupLiability.NormalSide())
	assert.Equal(t, SideCredit, GroupCapital.NormalSide())
	assert.Equal(t, SideCredit, GroupIncome.NormalSide())
}

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		name   string
		normal Side
		debit  int64
		credit int64
		want   int64
	}{
		{"debit on debit-normal adds", SideDebit, 1000, 0, 1000},
		{"credit on debit-normal subtracts", SideDebit, 0, 400, -400},
		{"credit on credit-normal adds", SideCredit, 0, 1000, 1000},
		{"debit on credit-normal subtracts", SideCredit, 250, 0, -250},
		{"totals net out", SideDebit, 700, 700, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SignedAmount(tc.normal, tc.debit, tc.credit))
		})
	}
}

func TestColumns(t *testing.T) {
	d, c := Columns(SideDebit, 1000)
	assert.Equal(t, int64(1000), d)
	assert.Zero(t, c)

	d, c = Columns(SideCredit, 1000)
	assert.Zero(t, d)
	assert.Equal(t, int64(1000), c)

	// an overdrawn cash ledger is reported on the credit side
	d, c = Columns(SideDebit, -300)
	assert.Zero(t, d)
	assert.Equal(t, int64(300), c)

	d, c = Columns(SideCredit, -300)
	assert.Equal(t, int64(300), d)
	assert.Zero(t, c)
}

func TestGroupTypeValid(t *testing.T) {
	assert.True(t, GroupIncome.Valid())
	assert.False(t, GroupType("equity").Valid())
}
