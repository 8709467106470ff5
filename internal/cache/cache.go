package cache

import (
	"context"
	"errors"

	"go-shop/internal/domain"
)

// CartCache is the injected key-value front for cart reads. It is an
// optimization only: every error other than a miss is logged by callers and
// treated as absent, never surfaced as a request failure.
type CartCache interface {
	GetCart(ctx context.Context, slug string) (*domain.Cart, error)
	SetCart(ctx context.Context, slug string, cart *domain.Cart) error
	GetTotals(ctx context.Context, slug string) (*domain.CartTotals, error)
	SetTotals(ctx context.Context, slug string, totals *domain.CartTotals) error
	Invalidate(ctx context.Context, slug string) error
}

var ErrCacheMiss = errors.New("cache miss")
