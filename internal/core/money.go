// Package core holds the domain model of the savings-goal engine: goals,
// contributions, the lifecycle state machine and the allocation calculator.
//
// All monetary values are exact decimals (shopspring/decimal); binary floats
// never enter the arithmetic. Amounts are rounded half-up to two places at
// the point of return only.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a positive money amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. Returns
// ErrInvalidAmount for malformed input, zero, or negative values.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only plain positive values allowed
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate converts a decimal string into a savings rate, validated against
// the [0.01, 1.00] range. An empty string yields DefaultSavingsRate.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSavingsRate, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidSavingsRate
	}
	if d.LessThan(minSavingsRate) || d.GreaterThan(maxSavingsRate) {
		return decimal.Zero, ErrInvalidSavingsRate
	}
	return d, nil
}

// Cents converts an amount to integer cents, rounding half-up on sub-cent
// input. Storage keeps cents so SQL sums stay exact.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(decimal.New(100, 0)).IntPart()
}

// FromCents is the inverse of Cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
