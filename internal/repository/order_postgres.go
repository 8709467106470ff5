package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"go-shop/internal/domain"
)

// CreateOrderFromCart persists a derived order in one transaction: lock the
// source cart, write the order and its item snapshot, reconcile the order
// totals, mark the cart ordered, bump discount usage and queue the outbox
// event. Nothing is visible unless every step commits.
func (r *Repository) CreateOrderFromCart(ctx context.Context, order *domain.Order, discountCode string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := lockCart(ctx, tx, order.CartID)
	if err != nil {
		return err
	}

	if discountCode != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE discounts SET used_count = used_count + 1, updated_at = NOW()
			 WHERE code = $1 AND is_active AND (max_usage = 0 OR used_count < max_usage)`,
			discountCode)
		if err != nil {
			return fmt.Errorf("increment discount usage: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// The discount either never existed or another checkout consumed
			// the last usage between validation and this bump. The two cases
			// surface differently to the caller.
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM discounts WHERE code = $1)`, discountCode,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check discount: %w", err)
			}
			if exists {
				return ErrDiscountExhausted
			}
			return ErrDiscountNotFound
		}
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (customer_id, customer_email, cart_id, slug, total_price, total_items,
		                     status, payment_status, payment_gateway, shipping_method, shipping_cost,
		                     tax_amount, discount_amount, shipping_address_id, billing_address_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at, updated_at`,
		order.CustomerID, order.CustomerEmail, order.CartID, order.Slug,
		order.TotalPrice, order.TotalItems, order.Status, order.PaymentStatus,
		order.PaymentGateway, order.ShippingMethod, order.ShippingCost,
		order.TaxAmount, order.DiscountAmount, order.ShippingAddressID, order.BillingAddressID,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			 VALUES ($1, $2, COALESCE((SELECT name FROM products WHERE id = $2), ''), $3, $4)
			 RETURNING id, product_name, created_at`,
			order.ID, item.ProductID, item.Quantity, item.UnitPrice,
		).Scan(&item.ID, &item.ProductName, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := reconcileOrderTx(ctx, tx, order.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET is_ordered = TRUE, is_active = FALSE, updated_at = NOW() WHERE id = $1`,
		cart.ID); err != nil {
		return fmt.Errorf("mark cart ordered: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":    order.ID,
		"order_slug":  order.Slug,
		"customer_id": order.CustomerID,
		"total_items": order.TotalItems,
		"grand_total": order.GrandTotal(),
		"placed_at":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_outbox (aggregate_id, event_type, payload)
		 VALUES ($1, $2, $3)`,
		order.Slug, "order.placed", payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

const orderColumns = `id, customer_id, customer_email, cart_id, slug, total_price, total_items,
	status, payment_status, payment_gateway, tracking_number, shipping_method,
	shipping_cost, tax_amount, discount_amount, shipping_address_id, billing_address_id,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.CustomerEmail,
		&o.CartID,
		&o.Slug,
		&o.TotalPrice,
		&o.TotalItems,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentGateway,
		&o.TrackingNumber,
		&o.ShippingMethod,
		&o.ShippingCost,
		&o.TaxAmount,
		&o.DiscountAmount,
		&o.ShippingAddressID,
		&o.BillingAddressID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadOrderItems(ctx, order); err != nil {
		return nil, err
	}
	if err := r.loadPayment(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, order := range orders {
		if err := r.loadOrderItems(ctx, order); err != nil {
			return nil, err
		}
		if err := r.loadPayment(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) loadOrderItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		 FROM order_items WHERE order_id = $1 ORDER BY product_name`, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.CreatedAt); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (r *Repository) loadPayment(ctx context.Context, order *domain.Order) error {
	var p domain.Payment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, payment_id, authority, amount, gateway, status, ref_id, transaction_id, gateway_response, created_at, updated_at
		 FROM payments WHERE order_id = $1`, order.ID,
	).Scan(&p.ID, &p.OrderID, &p.PaymentID, &p.Authority, &p.Amount, &p.Gateway,
		&p.Status, &p.RefID, &p.TransactionID, &p.GatewayResponse, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query payment: %w", err)
	}
	order.Payment = &p
	return nil
}

// UpdateOrderStatus applies a fulfillment transition, rejecting illegal moves
// and any state that would leave a paid order pending.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID int64, next domain.OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, payment, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(next) {
		return domain.ErrIllegalTransition
	}
	if payment == domain.PaymentStatusPaid && next == domain.OrderStatusPending {
		return domain.ErrPaidOrderPending
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, next, orderID); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// UpdatePaymentStatus applies a payment transition. Moving to paid while the
// order is still pending violates the cross-field invariant and is rejected;
// the fulfillment side must confirm the order first.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, orderID int64, next domain.PaymentStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	status, current, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(next) {
		return domain.ErrIllegalTransition
	}
	if next == domain.PaymentStatusPaid && status == domain.OrderStatusPending {
		return domain.ErrPaidOrderPending
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`, next, orderID); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment status update: %w", err)
	}
	return nil
}

func lockOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64) (domain.OrderStatus, domain.PaymentStatus, error) {
	var status domain.OrderStatus
	var payment domain.PaymentStatus
	err := tx.QueryRowContext(ctx,
		`SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(&status, &payment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrOrderNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lock order: %w", err)
	}
	return status, payment, nil
}

// SavePayment upserts the gateway-sourced payment record after checking the
// cross-entity rule against the current order state.
func (r *Repository) SavePayment(ctx context.Context, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	status, paymentStatus, err := lockOrderStatus(ctx, tx, payment.OrderID)
	if err != nil {
		return err
	}
	order := &domain.Order{Status: status, PaymentStatus: paymentStatus}
	if err := payment.Validate(order); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, payment_id, authority, amount, gateway, status, ref_id, transaction_id, gateway_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (order_id) DO UPDATE SET
		   payment_id = EXCLUDED.payment_id,
		   authority = EXCLUDED.authority,
		   amount = EXCLUDED.amount,
		   gateway = EXCLUDED.gateway,
		   status = EXCLUDED.status,
		   ref_id = EXCLUDED.ref_id,
		   transaction_id = EXCLUDED.transaction_id,
		   gateway_response = EXCLUDED.gateway_response,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		payment.OrderID, payment.PaymentID, payment.Authority, payment.Amount,
		payment.Gateway, payment.Status, payment.RefID, payment.TransactionID, payment.GatewayResponse,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

func (r *Repository) GetDiscountByCode(ctx context.Context, code string) (*domain.Discount, error) {
	var d domain.Discount
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, value, valid_from, valid_until, max_usage, used_count, is_active, created_at, updated_at
		 FROM discounts WHERE code = $1`, code,
	).Scan(&d.ID, &d.Code, &d.Type, &d.Value, &d.ValidFrom, &d.ValidUntil,
		&d.MaxUsage, &d.UsedCount, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query discount: %w", err)
	}
	return &d, nil
}

// ReconcileOrder overwrites the order's cached totals with a fresh sum over
// its line items.
func (r *Repository) ReconcileOrder(ctx context.Context, orderID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := reconcileOrderTx(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile: %w", err)
	}
	return nil
}

func reconcileOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET
		   total_price = COALESCE((SELECT trunc(SUM(quantity * unit_price), 2) FROM order_items WHERE order_id = orders.id), 0),
		   total_items = COALESCE((SELECT SUM(quantity) FROM order_items WHERE order_id = orders.id), 0),
		   updated_at = NOW()
		 WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("reconcile order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reconcile order: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at, processed_at
		 FROM order_outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt, &ev.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
