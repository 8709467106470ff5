package domain

import "github.com/shopspring/decimal"

// TaxRate is the flat sales tax rate applied to order subtotals.
var TaxRate = decimal.NewFromFloat(0.09)

// Trunc2 truncates a monetary value to 2 fractional digits. Every persisted
// total goes through this, so re-running reconciliation on already-correct
// data is a no-op.
func Trunc2(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// RoundHalfUp2 rounds to 2 fractional digits, halves rounding up.
// Used for tax amounts only.
func RoundHalfUp2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
