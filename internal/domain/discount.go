package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a standalone code with a validity window and a usage counter
// bounded by MaxUsage (0 = unlimited).
type Discount struct {
	ID         int64
	Code       string
	Type       DiscountType
	Value      decimal.Decimal
	ValidFrom  time.Time
	ValidUntil time.Time
	MaxUsage   int
	UsedCount  int
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (d Discount) Validate() error {
	if d.Value.IsNegative() || d.MaxUsage < 0 || d.UsedCount < 0 {
		return ErrInvalidDiscount
	}
	if !d.ValidFrom.IsZero() && !d.ValidUntil.IsZero() && d.ValidFrom.After(d.ValidUntil) {
		return ErrInvalidDiscount
	}
	return nil
}

// Exhausted reports whether the usage counter has reached MaxUsage.
func (d Discount) Exhausted() bool {
	return d.MaxUsage > 0 && d.UsedCount >= d.MaxUsage
}

// Apply yields the monetary amount the discount takes off the given total at
// time now. Inactive, expired or exhausted discounts yield zero. Percentage
// discounts truncate to 2 digits; fixed discounts return the truncated value.
// Capping at the total is the caller's responsibility.
func (d Discount) Apply(total decimal.Decimal, now time.Time) decimal.Decimal {
	if !d.IsActive || d.Exhausted() {
		return decimal.Zero
	}
	if !d.ValidFrom.IsZero() && now.Before(d.ValidFrom) {
		return decimal.Zero
	}
	if !d.ValidUntil.IsZero() && now.After(d.ValidUntil) {
		return decimal.Zero
	}
	if d.Type == DiscountPercentage {
		return Trunc2(total.Mul(d.Value).Div(decimal.NewFromInt(100)))
	}
	return Trunc2(d.Value)
}
