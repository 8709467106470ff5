package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-shop/internal/domain"
)

const addressColumns = `id, customer_id, first_name, last_name, company, address_line_1, address_line_2,
	city, state, postal_code, country, phone, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (*domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.FirstName,
		&a.LastName,
		&a.Company,
		&a.Line1,
		&a.Line2,
		&a.City,
		&a.State,
		&a.PostalCode,
		&a.Country,
		&a.Phone,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan address: %w", err)
	}
	return &a, nil
}

// SaveAddress inserts or updates an address. A default address demotes the
// customer's previous default inside the same transaction, so at most one
// default survives any interleaving of saves.
func (r *Repository) SaveAddress(ctx context.Context, address *domain.ShippingAddress) error {
	if err := address.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if address.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE shipping_addresses SET is_default = FALSE, updated_at = NOW()
			 WHERE customer_id = $1 AND is_default AND id <> $2`,
			address.CustomerID, address.ID); err != nil {
			return fmt.Errorf("demote default address: %w", err)
		}
	}

	if address.ID == 0 {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO shipping_addresses
			   (customer_id, first_name, last_name, company, address_line_1, address_line_2,
			    city, state, postal_code, country, phone, is_default)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id, created_at, updated_at`,
			address.CustomerID, address.FirstName, address.LastName, address.Company,
			address.Line1, address.Line2, address.City, address.State,
			address.PostalCode, address.Country, address.Phone, address.IsDefault,
		).Scan(&address.ID, &address.CreatedAt, &address.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`UPDATE shipping_addresses SET
			   first_name = $1, last_name = $2, company = $3, address_line_1 = $4,
			   address_line_2 = $5, city = $6, state = $7, postal_code = $8,
			   country = $9, phone = $10, is_default = $11, updated_at = NOW()
			 WHERE id = $12 AND customer_id = $13`,
			address.FirstName, address.LastName, address.Company, address.Line1,
			address.Line2, address.City, address.State, address.PostalCode,
			address.Country, address.Phone, address.IsDefault,
			address.ID, address.CustomerID)
		if err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		if n == 0 {
			return ErrAddressNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit address: %w", err)
	}
	return nil
}

func (r *Repository) GetAddressByID(ctx context.Context, id int64) (*domain.ShippingAddress, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM shipping_addresses WHERE id = $1`, id)
	return scanAddress(row)
}

func (r *Repository) ListAddressesByCustomer(ctx context.Context, customerID int64) ([]*domain.ShippingAddress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM shipping_addresses
		 WHERE customer_id = $1 ORDER BY is_default DESC, created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*domain.ShippingAddress
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

func (r *Repository) DefaultAddress(ctx context.Context, customerID int64) (*domain.ShippingAddress, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM shipping_addresses
		 WHERE customer_id = $1 AND is_default`, customerID)
	return scanAddress(row)
}
