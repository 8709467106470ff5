package catalog

import (
	"context"
	"errors"

	"go-shop/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// ProductCatalog is the read-only contract with the catalog collaborator.
// The cart/order core never mutates products or stock.
type ProductCatalog interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}
