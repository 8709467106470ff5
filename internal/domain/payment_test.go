package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayment_Validate(t *testing.T) {
	order := &Order{Status: OrderStatusConfirmed, PaymentStatus: PaymentStatusPaid}

	p := Payment{Amount: dec("20.00"), Status: PaymentCompleted}
	assert.NoError(t, p.Validate(order))

	order.PaymentStatus = PaymentStatusPending
	assert.ErrorIs(t, p.Validate(order), ErrPaymentNotPaid)

	p = Payment{Amount: dec("-1.00"), Status: PaymentPending}
	assert.ErrorIs(t, p.Validate(order), ErrNegativePrice)

	// a pending payment carries no cross-entity requirement
	p = Payment{Amount: dec("20.00"), Status: PaymentPending}
	assert.NoError(t, p.Validate(order))
}
