package domain

import (
	"errors"
	"fmt"
)

var (
	ErrQuantityNotPositive  = errors.New("quantity must be positive")
	ErrNegativePrice        = errors.New("price cannot be negative")
	ErrNegativeTotals       = errors.New("total price or items cannot be negative")
	ErrTotalsMismatch       = errors.New("total price does not match sum of line items")
	ErrDiscountExceedsTotal = errors.New("discount cannot exceed total price")
	ErrNegativeTax          = errors.New("tax amount cannot be negative")
	ErrPaidOrderPending     = errors.New("paid orders cannot be pending")
	ErrPaymentNotPaid       = errors.New("completed payment requires order payment status to be paid")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrInvalidDiscount      = errors.New("invalid discount definition")
	ErrInvalidAddress       = errors.New("address is missing required fields")
)

// InsufficientStockError is returned when a requested quantity exceeds the
// product's stock at write time. The check is advisory, not a reservation.
type InsufficientStockError struct {
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s, available: %d", e.ProductName, e.Available)
}
