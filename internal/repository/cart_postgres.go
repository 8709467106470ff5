package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"go-shop/internal/domain"
)

const uniqueViolation = "23505"

// GetOrCreateCart returns the customer's single active, unordered cart,
// creating it when absent. The partial unique index on carts guarantees
// at most one such cart even under concurrent first requests; losing the
// insert race falls back to re-reading the winner's row.
func (r *Repository) GetOrCreateCart(ctx context.Context, customer domain.Customer) (*domain.Cart, error) {
	cart, err := r.GetActiveCart(ctx, customer.ID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	slug := domain.CartSlug(customer.Email)
	for attempt := 0; attempt < 2; attempt++ {
		cart, err = r.insertCart(ctx, customer, slug)
		if err == nil {
			return cart, nil
		}

		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
			return nil, fmt.Errorf("insert cart: %w", err)
		}
		if pqErr.Constraint == "carts_active_customer_idx" {
			// Concurrent request created the cart first.
			return r.GetActiveCart(ctx, customer.ID)
		}
		// Slug taken by an older, already-ordered cart of the same customer.
		slug = fmt.Sprintf("%s-%s", domain.CartSlug(customer.Email), uuid.NewString()[:8])
	}
	return nil, fmt.Errorf("insert cart: %w", err)
}

func (r *Repository) insertCart(ctx context.Context, customer domain.Customer, slug string) (*domain.Cart, error) {
	cart := &domain.Cart{
		CustomerID:    customer.ID,
		CustomerEmail: customer.Email,
		Slug:          slug,
		IsActive:      true,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO carts (customer_id, customer_email, slug)
		 VALUES ($1, $2, $3)
		 RETURNING id, total_price, total_items, created_at, updated_at`,
		customer.ID, customer.Email, slug,
	).Scan(&cart.ID, &cart.TotalPrice, &cart.TotalItems, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

const cartColumns = `id, customer_id, customer_email, slug, total_price, total_items, is_active, is_ordered, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (*domain.Cart, error) {
	var cart domain.Cart
	err := row.Scan(
		&cart.ID,
		&cart.CustomerID,
		&cart.CustomerEmail,
		&cart.Slug,
		&cart.TotalPrice,
		&cart.TotalItems,
		&cart.IsActive,
		&cart.IsOrdered,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan cart: %w", err)
	}
	return &cart, nil
}

func (r *Repository) GetCartBySlug(ctx context.Context, slug string) (*domain.Cart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE slug = $1`, slug)
	cart, err := scanCart(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadCartItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *Repository) GetActiveCart(ctx context.Context, customerID int64) (*domain.Cart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts
		 WHERE customer_id = $1 AND is_active AND NOT is_ordered`, customerID)
	cart, err := scanCart(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadCartItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *Repository) loadCartItems(ctx context.Context, cart *domain.Cart) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price, created_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY created_at DESC, id DESC`, cart.ID)
	if err != nil {
		return fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt); err != nil {
			return fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return rows.Err()
}

func (r *Repository) GetCartItem(ctx context.Context, cartID, itemID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := r.db.QueryRowContext(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price, created_at
		 FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart item: %w", err)
	}
	return &item, nil
}

// AddItem inserts a line item, or merges quantities when the product is
// already in the cart. The whole path runs in one transaction: lock cart,
// validate against the product's current price and stock, persist the item,
// apply the delta to the cart's cached totals, persist the cart.
func (r *Repository) AddItem(ctx context.Context, cartID, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrQuantityNotPositive
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := lockCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	product, err := getProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	var old *domain.CartItem
	existing, err := lockItemByProduct(ctx, tx, cartID, productID)
	if err != nil && !errors.Is(err, ErrCartItemNotFound) {
		return nil, err
	}
	if err == nil {
		old = existing
	}

	item := domain.CartItem{
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
	var delta domain.TotalsDelta
	if old != nil {
		item.ID = old.ID
		item.Quantity = old.Quantity + quantity
		delta = domain.UpdateDelta(*old, item)
	} else {
		delta = domain.InsertDelta(item)
	}

	if err := item.Validate(product); err != nil {
		return nil, err
	}

	if old != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $1, unit_price = $2 WHERE id = $3`,
			item.Quantity, item.UnitPrice, item.ID)
		if err != nil {
			return nil, fmt.Errorf("update cart item: %w", err)
		}
		item.CreatedAt = old.CreatedAt
	} else {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			cartID, productID, item.Quantity, item.UnitPrice,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
	}

	if err := applyCartDelta(ctx, tx, cart, delta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add item: %w", err)
	}
	return &item, nil
}

// UpdateItemQuantity changes a line item's quantity, keeping its stored unit
// price snapshot, and applies the signed delta to the cart totals.
func (r *Repository) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrQuantityNotPositive
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := lockCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	old, err := lockItemByID(ctx, tx, cartID, itemID)
	if err != nil {
		return nil, err
	}

	product, err := getProduct(ctx, tx, old.ProductID)
	if err != nil {
		return nil, err
	}

	item := *old
	item.Quantity = quantity
	if err := item.Validate(product); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2`, quantity, itemID); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	if err := applyCartDelta(ctx, tx, cart, domain.UpdateDelta(*old, item)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update item: %w", err)
	}
	return &item, nil
}

// RemoveItem deletes a line item and subtracts its contribution from the cart
// totals. The cart row itself stays.
func (r *Repository) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := lockCart(ctx, tx, cartID)
	if err != nil {
		return err
	}

	item, err := lockItemByID(ctx, tx, cartID, itemID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	if err := applyCartDelta(ctx, tx, cart, domain.DeleteDelta(*item)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove item: %w", err)
	}
	return nil
}

// ReconcileCart overwrites the cached totals with a fresh sum over the cart's
// current line items. Truncation to 2 digits makes repeated runs a no-op.
func (r *Repository) ReconcileCart(ctx context.Context, cartID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE carts SET
		   total_price = COALESCE((SELECT trunc(SUM(quantity * unit_price), 2) FROM cart_items WHERE cart_id = carts.id), 0),
		   total_items = COALESCE((SELECT SUM(quantity) FROM cart_items WHERE cart_id = carts.id), 0),
		   updated_at = NOW()
		 WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("reconcile cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reconcile cart: %w", err)
	}
	if n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func lockCart(ctx context.Context, tx *sql.Tx, cartID int64) (*domain.Cart, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, cartID)
	cart, err := scanCart(row)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive || cart.IsOrdered {
		return nil, ErrCartNotActive
	}
	return cart, nil
}

func lockItemByProduct(ctx context.Context, tx *sql.Tx, cartID, productID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := tx.QueryRowContext(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price, created_at
		 FROM cart_items WHERE cart_id = $1 AND product_id = $2 FOR UPDATE`,
		cartID, productID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock cart item: %w", err)
	}
	return &item, nil
}

func lockItemByID(ctx context.Context, tx *sql.Tx, cartID, itemID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := tx.QueryRowContext(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price, created_at
		 FROM cart_items WHERE id = $1 AND cart_id = $2 FOR UPDATE`,
		itemID, cartID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock cart item: %w", err)
	}
	return &item, nil
}

func getProduct(ctx context.Context, tx *sql.Tx, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, slug, price, stock, available FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.Stock, &p.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func applyCartDelta(ctx context.Context, tx *sql.Tx, cart *domain.Cart, delta domain.TotalsDelta) error {
	cart.ApplyDelta(delta)
	if err := cart.ValidateTotals(); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE carts SET total_price = $1, total_items = $2, updated_at = NOW() WHERE id = $3`,
		cart.TotalPrice, cart.TotalItems, cart.ID)
	if err != nil {
		return fmt.Errorf("update cart totals: %w", err)
	}
	return nil
}
