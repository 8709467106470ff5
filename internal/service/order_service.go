package service

import (
	"context"
	"errors"
	"log"
	"time"

	"go-shop/internal/cache"
	"go-shop/internal/domain"
	"go-shop/internal/repository"
)

// OrderService derives orders from carts at checkout and guards the order
// and payment state machines.
type OrderService struct {
	orders    repository.OrderRepository
	carts     repository.CartRepository
	addresses repository.AddressRepository
	cache     cache.CartCache
}

func NewOrderService(orders repository.OrderRepository, carts repository.CartRepository, addresses repository.AddressRepository, cache cache.CartCache) *OrderService {
	return &OrderService{
		orders:    orders,
		carts:     carts,
		addresses: addresses,
		cache:     cache,
	}
}

// Checkout snapshots the customer's active cart into a new pending order:
// reconcile the cart, derive the order items, price shipping, default the
// tax, apply and cap the discount, then persist everything atomically.
func (s *OrderService) Checkout(ctx context.Context, customer domain.Customer, method domain.ShippingMethod, discountCode string) (*domain.Order, error) {
	if !method.Valid() {
		return nil, ErrInvalidShipping
	}

	cart, err := s.carts.GetActiveCart(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Defensive reconciliation before the snapshot; idempotent when the
	// incremental totals are already correct.
	if err := s.carts.ReconcileCart(ctx, cart.ID); err != nil {
		return nil, err
	}
	cart.Reconcile()

	order := domain.DeriveOrder(cart, method)

	// Attach the customer's default address when one exists; orders without
	// a saved address ship on the email alone, as before.
	if address, err := s.addresses.DefaultAddress(ctx, customer.ID); err == nil {
		order.ShippingAddressID = &address.ID
		order.BillingAddressID = &address.ID
	} else if !errors.Is(err, repository.ErrAddressNotFound) {
		return nil, err
	}

	if discountCode != "" {
		discount, err := s.orders.GetDiscountByCode(ctx, discountCode)
		if err != nil {
			return nil, err
		}
		amount := discount.Apply(order.TotalPrice, time.Now())
		if amount.GreaterThan(order.TotalPrice) {
			amount = order.TotalPrice
		}
		order.DiscountAmount = amount
		if amount.IsZero() {
			discountCode = "" // expired or exhausted, do not burn usage
		}
	}

	order.Normalize()
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := s.orders.CreateOrderFromCart(ctx, order, discountCode); err != nil {
		return nil, err
	}

	s.invalidate(cart.Slug)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, customer domain.Customer, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customer.ID {
		return nil, ErrOrderNotOwned
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, customer domain.Customer) ([]*domain.Order, error) {
	return s.orders.ListOrdersByCustomer(ctx, customer.ID)
}

// SaveAddress persists a customer address, enforcing ownership and the
// single-default rule delegated to the repository.
func (s *OrderService) SaveAddress(ctx context.Context, customer domain.Customer, address *domain.ShippingAddress) error {
	address.CustomerID = customer.ID
	if err := address.Validate(); err != nil {
		return err
	}
	return s.addresses.SaveAddress(ctx, address)
}

// ListAddresses returns the customer's saved addresses, default first.
func (s *OrderService) ListAddresses(ctx context.Context, customer domain.Customer) ([]*domain.ShippingAddress, error) {
	return s.addresses.ListAddressesByCustomer(ctx, customer.ID)
}

// UpdateStatus applies a fulfillment-driven transition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) error {
	return s.orders.UpdateOrderStatus(ctx, orderID, next)
}

// UpdatePaymentStatus applies a payment-gateway-driven transition.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID int64, next domain.PaymentStatus) error {
	return s.orders.UpdatePaymentStatus(ctx, orderID, next)
}

// RecordPayment stores the gateway-sourced payment record for an order.
func (s *OrderService) RecordPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.Amount.IsNegative() {
		return domain.ErrNegativePrice
	}
	return s.orders.SavePayment(ctx, payment)
}

// Reconcile is the administrative repair hook for an order's cached totals.
func (s *OrderService) Reconcile(ctx context.Context, orderID int64) error {
	return s.orders.ReconcileOrder(ctx, orderID)
}

func (s *OrderService) invalidate(slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, slug); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("cache invalidate error: %v", err)
	}
}
