package domain

type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// SignedAmount is the effect of debit and credit on a balance kept on the
// normal side. Every balance in the books is computed through this function.
func SignedAmount(normal Side, debit, credit int64) int64 {
	if normal == SideDebit {
		return debit - credit
	}
	return credit - debit
}

// Columns places a balance kept on the normal side into debit/credit columns.
// A balance that went negative lands in the opposite column as its absolute value.
func Columns(normal Side, balance int64) (debit, credit int64) {
	side := normal
	if balance < 0 {
		side = normal.Opposite()
		balance = -balance
	}
	if side == SideDebit {
		return balance, 0
	}
	return 0, balance
}
