package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary amount in integer minor-currency units
// (e.g. cents). All ledger arithmetic is exact integer arithmetic; the
// only place rounding happens is when a decimal quantity (consumption,
// penalty fraction) is converted into Money via RoundDecimal.
type Money int64

// Zero is the zero monetary amount.
const Zero Money = 0

// NewMoney creates Money from integer minor units.
func NewMoney(minorUnits int64) Money {
	return Money(minorUnits)
}

// RoundDecimal converts a decimal amount of minor units into Money,
// rounding half away from zero. Used for consumption x rate and penalty
// accrual; the rounding mode is fixed so repeated computation over the
// same inputs yields the same charge.
func RoundDecimal(d decimal.Decimal) Money {
	return Money(d.Round(0).IntPart())
}

// Int64 returns the amount in minor units.
func (m Money) Int64() int64 {
	return int64(m)
}

// Decimal returns the amount as a decimal of minor units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m == 0
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// Add returns the sum of both amounts.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns the difference of both amounts.
func (m Money) Sub(other Money) Money {
	return m - other
}

// Neg returns the amount with the sign reversed.
func (m Money) Neg() Money {
	return -m
}

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// String formats the amount as minor units.
func (m Money) String() string {
	return fmt.Sprintf("%d", int64(m))
}
