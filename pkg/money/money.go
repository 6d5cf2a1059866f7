// Package money converts between boundary decimals and the int64 minor units
// the ledger tables persist.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

var (
	ErrTooPrecise = errors.New("amount has more than two fractional digits")
	ErrOverflow   = errors.New("amount out of range")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(1 << 53)
)

// ToMinor converts d into minor units. Amounts with more than two fractional
// digits are rejected instead of rounded.
func ToMinor(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if scaled.Abs().GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}
	return scaled.IntPart(), nil
}

// FromMinor converts minor units back to a decimal with two fractional digits.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

// Format renders minor units as a fixed two-digit string.
func Format(v int64) string {
	return FromMinor(v).StringFixed(Scale)
}

// Amount is a JSON-facing monetary value. It always marshals with two
// fractional digits.
type Amount int64

func (a Amount) Decimal() decimal.Decimal { return FromMinor(int64(a)) }

func (a Amount) String() string { return Format(int64(a)) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := ToMinor(d)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}
