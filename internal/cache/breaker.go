package cache

import (
	"context"
	"errors"
	"log"

	"github.com/sony/gobreaker/v2"

	"go-shop/internal/domain"
)

// BreakerCache wraps another CartCache with a circuit breaker so a down
// redis stops being probed on every request. An open breaker reports a miss,
// which sends reads straight to the repository.
type BreakerCache struct {
	inner   CartCache
	breaker *gobreaker.CircuitBreaker[any]
}

func NewBreakerCache(inner CartCache) *BreakerCache {
	settings := gobreaker.Settings{
		Name: "cart-cache",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("cache breaker %s: %s -> %s", name, from, to)
		},
		// A miss is a normal outcome, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
	}
	return &BreakerCache{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerCache) GetCart(ctx context.Context, slug string) (*domain.Cart, error) {
	v, err := b.execute(func() (any, error) {
		return b.inner.GetCart(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (b *BreakerCache) SetCart(ctx context.Context, slug string, cart *domain.Cart) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.SetCart(ctx, slug, cart)
	})
	return err
}

func (b *BreakerCache) GetTotals(ctx context.Context, slug string) (*domain.CartTotals, error) {
	v, err := b.execute(func() (any, error) {
		return b.inner.GetTotals(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartTotals), nil
}

func (b *BreakerCache) SetTotals(ctx context.Context, slug string, totals *domain.CartTotals) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.SetTotals(ctx, slug, totals)
	})
	return err
}

func (b *BreakerCache) Invalidate(ctx context.Context, slug string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.Invalidate(ctx, slug)
	})
	return err
}

// execute runs the call through the breaker. An open breaker is reported as
// a miss so callers fall back to the repository without logging noise.
func (b *BreakerCache) execute(fn func() (any, error)) (any, error) {
	v, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCacheMiss
	}
	return v, err
}
