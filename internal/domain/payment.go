package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
	PaymentRefunded  PaymentState = "refunded"
)

// Payment is one-to-one with an order and sourced from the external gateway.
// The core only enforces the cross-entity rule in Validate.
type Payment struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"-"`
	PaymentID       string          `json:"payment_id"`
	Authority       string          `json:"authority,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Gateway         string          `json:"gateway"`
	Status          PaymentState    `json:"status"`
	RefID           string          `json:"ref_id,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	GatewayResponse string          `json:"gateway_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"-"`
}

// Validate rejects negative amounts and a completed payment against an order
// whose payment status is not paid.
func (p Payment) Validate(order *Order) error {
	if p.Amount.IsNegative() {
		return ErrNegativePrice
	}
	if p.Status == PaymentCompleted && order != nil && order.PaymentStatus != PaymentStatusPaid {
		return ErrPaymentNotPaid
	}
	return nil
}
