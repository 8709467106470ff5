package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusConfirmed))
	assert.True(t, OrderStatusConfirmed.CanTransitionTo(OrderStatusProcessing))
	assert.True(t, OrderStatusProcessing.CanTransitionTo(OrderStatusShipped))
	assert.True(t, OrderStatusShipped.CanTransitionTo(OrderStatusDelivered))

	// cancelled is reachable from any pre-delivered state
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped} {
		assert.True(t, s.CanTransitionTo(OrderStatusCancelled), "%s -> cancelled", s)
	}

	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusShipped))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusConfirmed))
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
}

func TestPaymentStatus_Transitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusPaid))
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusFailed))
	assert.True(t, PaymentStatusPaid.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusPaid))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusPending))
}

func TestShippingMethod_Cost(t *testing.T) {
	assert.True(t, ShippingStandard.Cost().Equal(dec("5.00")))
	assert.True(t, ShippingExpress.Cost().Equal(dec("15.00")))
	assert.True(t, ShippingOvernight.Cost().Equal(dec("30.00")))
	assert.True(t, ShippingPickup.Cost().Equal(decimal.Zero))
	assert.False(t, ShippingMethod("teleport").Valid())
}

func TestOrder_GrandTotal(t *testing.T) {
	order := &Order{
		TotalPrice:     dec("100.00"),
		ShippingCost:   dec("5.00"),
		TaxAmount:      dec("9.00"),
		DiscountAmount: dec("10.00"),
	}
	assert.True(t, order.GrandTotal().Equal(dec("104.00")))
}

func TestOrder_Normalize_DefaultsTax(t *testing.T) {
	order := &Order{TotalPrice: dec("100.00")}
	order.Normalize()
	assert.True(t, order.TaxAmount.Equal(dec("9.00")), "9%% half-up of 100.00, got %s", order.TaxAmount)
}

func TestOrder_Normalize_KeepsExplicitTax(t *testing.T) {
	order := &Order{TotalPrice: dec("100.00"), TaxAmount: dec("5.00")}
	order.Normalize()
	assert.True(t, order.TaxAmount.Equal(dec("5.00")))
}

func TestOrder_CalculateTax_HalfUp(t *testing.T) {
	// 9% of 100.50 = 9.045 -> 9.05 half-up
	order := &Order{TotalPrice: dec("100.50")}
	assert.True(t, order.CalculateTax().Equal(dec("9.05")), "got %s", order.CalculateTax())

	// with items, the line subtotal wins over the cached total
	order.Items = []OrderItem{{Quantity: 2, UnitPrice: dec("10.00")}}
	assert.True(t, order.CalculateTax().Equal(dec("1.80")))
}

func TestOrder_Validate(t *testing.T) {
	valid := func() *Order {
		return &Order{
			TotalPrice:    dec("20.00"),
			TotalItems:    2,
			Status:        OrderStatusPending,
			PaymentStatus: PaymentStatusPending,
			Items:         []OrderItem{{Quantity: 2, UnitPrice: dec("10.00")}},
		}
	}

	require.NoError(t, valid().Validate())

	order := valid()
	order.PaymentStatus = PaymentStatusPaid
	assert.ErrorIs(t, order.Validate(), ErrPaidOrderPending)

	order = valid()
	order.Status = OrderStatusConfirmed
	order.PaymentStatus = PaymentStatusPaid
	assert.NoError(t, order.Validate())

	order = valid()
	order.DiscountAmount = dec("20.01")
	assert.ErrorIs(t, order.Validate(), ErrDiscountExceedsTotal)

	order = valid()
	order.TotalPrice = dec("25.00")
	assert.ErrorIs(t, order.Validate(), ErrTotalsMismatch)

	// drift within the 0.01 tolerance is accepted
	order = valid()
	order.TotalPrice = dec("20.01")
	assert.NoError(t, order.Validate())

	order = valid()
	order.TaxAmount = dec("-1.00")
	assert.ErrorIs(t, order.Validate(), ErrNegativeTax)
}

func TestDeriveOrder(t *testing.T) {
	cart := &Cart{
		ID:            7,
		CustomerID:    1,
		CustomerEmail: "user@example.com",
		Items: []CartItem{
			{ProductID: 1, Quantity: 2, UnitPrice: dec("10.00")},
			{ProductID: 2, Quantity: 1, UnitPrice: dec("5.50")},
		},
	}

	order := DeriveOrder(cart, ShippingExpress)

	assert.Equal(t, int64(7), order.CartID)
	assert.Equal(t, "order-userexamplecom-7", order.Slug)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, PaymentStatusPending, order.PaymentStatus)
	assert.True(t, order.ShippingCost.Equal(dec("15.00")))
	require.Len(t, order.Items, 2)
	assert.True(t, order.TotalPrice.Equal(dec("25.50")))
	assert.Equal(t, 3, order.TotalItems)

	// item snapshots keep the cart's unit prices
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("10.00")))
	assert.True(t, order.Items[1].UnitPrice.Equal(dec("5.50")))
}

func TestOrder_Reconcile_Idempotent(t *testing.T) {
	order := &Order{
		Items: []OrderItem{
			{Quantity: 2, UnitPrice: dec("10.00")},
			{Quantity: 3, UnitPrice: dec("0.333")},
		},
	}
	order.Reconcile()
	first := order.TotalPrice
	order.Reconcile()
	assert.True(t, order.TotalPrice.Equal(first))
	assert.True(t, order.TotalPrice.Equal(dec("20.99"))) // 20 + 0.999 truncated
	assert.Equal(t, 5, order.TotalItems)
}
