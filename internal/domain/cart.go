package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the opaque identity supplied by the identity collaborator.
type Customer struct {
	ID    int64
	Email string
}

// Cart owns a collection of line items and caches their sum. TotalPrice and
// TotalItems must equal the sum over Items after every committed mutation.
type Cart struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"-"`
	CustomerEmail string          `json:"customer_email"`
	Slug          string          `json:"slug"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalItems    int             `json:"total_items"`
	IsActive      bool            `json:"is_active"`
	IsOrdered     bool            `json:"is_ordered"`
	Items         []CartItem      `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CartItem links a cart to a product with a quantity and a unit price
// snapshot taken when the item entered the cart. Later product price changes
// never alter an existing item.
type CartItem struct {
	ID        int64           `json:"id"`
	CartID    int64           `json:"-"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i CartItem) Validate(product *Product) error {
	if i.Quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if i.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	if product != nil && i.Quantity > product.Stock {
		return &InsufficientStockError{ProductName: product.Name, Available: product.Stock}
	}
	return nil
}

// CartTotals is the cached totals view served from the read-through cache.
type CartTotals struct {
	TotalPrice decimal.Decimal `json:"total_price"`
	TotalItems int             `json:"total_items"`
	ItemsCount int             `json:"items_count"`
}

// TotalsDelta is the signed change one line-item mutation causes on the
// owning cart's or order's cached totals.
type TotalsDelta struct {
	Items int
	Price decimal.Decimal
}

func InsertDelta(item CartItem) TotalsDelta {
	return TotalsDelta{Items: item.Quantity, Price: item.LineTotal()}
}

// UpdateDelta requires both the prior persisted state and the new state.
// Callers without a prior snapshot should fall back to InsertDelta.
func UpdateDelta(old, updated CartItem) TotalsDelta {
	return TotalsDelta{
		Items: updated.Quantity - old.Quantity,
		Price: updated.LineTotal().Sub(old.LineTotal()),
	}
}

func DeleteDelta(item CartItem) TotalsDelta {
	return TotalsDelta{Items: -item.Quantity, Price: item.LineTotal().Neg()}
}

// ApplyDelta applies a signed delta to the cached totals, truncating the
// monetary total to 2 digits.
func (c *Cart) ApplyDelta(d TotalsDelta) {
	c.TotalItems += d.Items
	c.TotalPrice = Trunc2(c.TotalPrice.Add(d.Price))
}

func (c *Cart) ValidateTotals() error {
	if c.TotalPrice.IsNegative() || c.TotalItems < 0 {
		return ErrNegativeTotals
	}
	return nil
}

// Reconcile recomputes the cached totals from the current line items in one
// pass. Idempotent: re-running on correct data changes nothing.
func (c *Cart) Reconcile() {
	sum := decimal.Zero
	items := 0
	for _, it := range c.Items {
		sum = sum.Add(it.LineTotal())
		items += it.Quantity
	}
	c.TotalPrice = Trunc2(sum)
	c.TotalItems = items
}

// Totals returns the cacheable totals view.
func (c *Cart) Totals() CartTotals {
	return CartTotals{
		TotalPrice: c.TotalPrice,
		TotalItems: c.TotalItems,
		ItemsCount: len(c.Items),
	}
}

// CartSlug derives the immutable cart slug from the owner's email.
func CartSlug(email string) string {
	return Slugify(fmt.Sprintf("cart-%s", email))
}
