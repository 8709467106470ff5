package repository

import (
	"context"
	"errors"
	"time"

	"go-shop/internal/domain"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartNotActive    = errors.New("cart is not active or already ordered")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrder   = errors.New("order for this cart already exists")
	ErrDiscountNotFound  = errors.New("discount not found")
	ErrDiscountExhausted = errors.New("discount usage limit reached")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrAddressNotFound   = errors.New("address not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CartRepository owns the atomic ledger write path: every item mutation runs
// in one transaction that locks the cart row, persists the item, applies the
// signed delta to the cached totals and persists the cart.
type CartRepository interface {
	GetOrCreateCart(ctx context.Context, customer domain.Customer) (*domain.Cart, error)
	GetCartBySlug(ctx context.Context, slug string) (*domain.Cart, error)
	GetActiveCart(ctx context.Context, customerID int64) (*domain.Cart, error)
	GetCartItem(ctx context.Context, cartID, itemID int64) (*domain.CartItem, error)
	AddItem(ctx context.Context, cartID, productID int64, quantity int) (*domain.CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	ReconcileCart(ctx context.Context, cartID int64) error
}

type OrderRepository interface {
	CreateOrderFromCart(ctx context.Context, order *domain.Order, discountCode string) error
	GetOrderByID(ctx context.Context, id int64) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, next domain.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, orderID int64, next domain.PaymentStatus) error
	SavePayment(ctx context.Context, payment *domain.Payment) error
	GetDiscountByCode(ctx context.Context, code string) (*domain.Discount, error)
	ReconcileOrder(ctx context.Context, orderID int64) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// AddressRepository owns customer shipping addresses. SaveAddress keeps the
// single-default rule: persisting a default clears the customer's previous
// default in the same transaction.
type AddressRepository interface {
	SaveAddress(ctx context.Context, address *domain.ShippingAddress) error
	GetAddressByID(ctx context.Context, id int64) (*domain.ShippingAddress, error)
	ListAddressesByCustomer(ctx context.Context, customerID int64) ([]*domain.ShippingAddress, error)
	DefaultAddress(ctx context.Context, customerID int64) (*domain.ShippingAddress, error)
}

// OutboxEvent is a pending domain event written in the same transaction as
// the state change it describes.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
