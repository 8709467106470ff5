package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions encodes pending -> confirmed -> processing -> shipped ->
// delivered, with cancelled reachable from any pre-delivered state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
	ShippingPickup    ShippingMethod = "pickup"
)

// Cost returns the flat shipping cost for the method.
func (m ShippingMethod) Cost() decimal.Decimal {
	switch m {
	case ShippingExpress:
		return decimal.NewFromFloat(15.00)
	case ShippingOvernight:
		return decimal.NewFromFloat(30.00)
	case ShippingPickup:
		return decimal.Zero
	default:
		return decimal.NewFromFloat(5.00)
	}
}

func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingStandard, ShippingExpress, ShippingOvernight, ShippingPickup:
		return true
	}
	return false
}

// Order is derived from exactly one cart at checkout and owns a snapshot of
// its line items. TotalPrice stays the plain sum over items; shipping, tax
// and discount only enter through GrandTotal.
type Order struct {
	ID             int64           `json:"id"`
	CustomerID     int64           `json:"-"`
	CustomerEmail  string          `json:"customer_email"`
	CartID         int64           `json:"cart_id"`
	Slug           string          `json:"slug"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	TotalItems     int             `json:"total_items"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentGateway string          `json:"payment_gateway"`
	TrackingNumber string          `json:"tracking_number"`
	ShippingMethod ShippingMethod  `json:"shipping_method"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	// Address references outlive address deletion as NULLs, never cascades.
	ShippingAddressID *int64 `json:"shipping_address_id,omitempty"`
	BillingAddressID  *int64 `json:"billing_address_id,omitempty"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Items          []OrderItem     `json:"items"`
	Payment        *Payment        `json:"payment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) Validate() error {
	if i.Quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if i.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// Subtotal sums the line totals without truncation.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// GrandTotal is the payable view: total_price + shipping + tax - discount.
// Never stored as total_price itself.
func (o *Order) GrandTotal() decimal.Decimal {
	return o.TotalPrice.Add(o.ShippingCost).Add(o.TaxAmount).Sub(o.DiscountAmount)
}

// CalculateTax returns 9% of the line subtotal when items exist, else of the
// current total price, rounded half-up to 2 digits.
func (o *Order) CalculateTax() decimal.Decimal {
	subtotal := o.TotalPrice
	if len(o.Items) > 0 {
		subtotal = o.Subtotal()
	}
	return RoundHalfUp2(subtotal.Mul(TaxRate))
}

// Normalize truncates all monetary fields to 2 digits and defaults the tax
// amount when it is exactly zero and the total is positive. An explicitly set
// non-zero tax amount is never overwritten.
func (o *Order) Normalize() {
	o.TotalPrice = Trunc2(o.TotalPrice)
	o.ShippingCost = Trunc2(o.ShippingCost)
	o.DiscountAmount = Trunc2(o.DiscountAmount)
	o.TaxAmount = Trunc2(o.TaxAmount)
	if o.TaxAmount.IsZero() && o.TotalPrice.IsPositive() {
		o.TaxAmount = o.CalculateTax()
	}
}

// totalsTolerance is the allowed drift between the cached total and the
// freshly summed line totals.
var totalsTolerance = decimal.NewFromFloat(0.01)

// Validate checks the order invariants at rest. Items must already be
// reconciled into the cached totals; call Reconcile first after bulk changes.
func (o *Order) Validate() error {
	if o.TotalPrice.IsNegative() || o.TotalItems < 0 {
		return ErrNegativeTotals
	}
	if o.TaxAmount.IsNegative() {
		return ErrNegativeTax
	}
	if o.PaymentStatus == PaymentStatusPaid && o.Status == OrderStatusPending {
		return ErrPaidOrderPending
	}
	if o.DiscountAmount.GreaterThan(o.TotalPrice) {
		return ErrDiscountExceedsTotal
	}
	if len(o.Items) > 0 {
		if o.TotalPrice.Sub(o.Subtotal()).Abs().GreaterThan(totalsTolerance) {
			return ErrTotalsMismatch
		}
	}
	return nil
}

// Reconcile recomputes the cached totals from the order's line items.
func (o *Order) Reconcile() {
	sum := decimal.Zero
	items := 0
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
		items += it.Quantity
	}
	o.TotalPrice = Trunc2(sum)
	o.TotalItems = items
}

// DeriveOrder snapshots a cart's line items into a new pending order. The
// cart's totals are reconciled into the order rather than copied blindly.
func DeriveOrder(cart *Cart, method ShippingMethod) *Order {
	order := &Order{
		CustomerID:     cart.CustomerID,
		CustomerEmail:  cart.CustomerEmail,
		CartID:         cart.ID,
		Slug:           OrderSlug(cart.CustomerEmail, cart.ID),
		Status:         OrderStatusPending,
		PaymentStatus:  PaymentStatusPending,
		ShippingMethod: method,
		ShippingCost:   method.Cost(),
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
	}
	for _, it := range cart.Items {
		order.Items = append(order.Items, OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	order.Reconcile()
	return order
}

// OrderSlug derives the order slug from the owner identity and the source
// cart. Orders and carts are one-to-one, so the pair is unique.
func OrderSlug(email string, cartID int64) string {
	return Slugify(fmt.Sprintf("order-%s-%d", email, cartID))
}
