package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"go-shop/internal/cache"
	"go-shop/internal/catalog"
	"go-shop/internal/domain"
	"go-shop/internal/repository"
)

// CartService orchestrates the cart write path: look up the product, run the
// repository's atomic mutation and invalidate cached views. Reads go through
// the cache first.
type CartService struct {
	repo    repository.CartRepository
	catalog catalog.ProductCatalog
	cache   cache.CartCache
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cat catalog.ProductCatalog, cache cache.CartCache) *CartService {
	return &CartService{
		repo:    repo,
		catalog: cat,
		cache:   cache,
	}
}

// GetOrCreateCart returns the customer's single active, unordered cart.
func (s *CartService) GetOrCreateCart(ctx context.Context, customer domain.Customer) (*domain.Cart, error) {
	return s.repo.GetOrCreateCart(ctx, customer)
}

// GetCartBySlug serves a cart read-through: cache hit, else repository, with
// singleflight collapsing concurrent misses for the same slug.
func (s *CartService) GetCartBySlug(ctx context.Context, customer domain.Customer, slug string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(slug, func() (interface{}, error) {
		cart, err := s.cache.GetCart(ctx, slug)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, err = s.repo.GetCartBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.SetCart(setCtx, slug, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	cart := v.(*domain.Cart)
	if cart.CustomerID != customer.ID {
		return nil, ErrCartNotOwned
	}
	return cart, nil
}

// GetCartTotals serves the short-lived totals view from the cache, falling
// back to the cart's authoritative persisted totals. The cart is resolved
// first in every case: the totals view carries no owner, so the ownership
// check cannot be left to the cache.
func (s *CartService) GetCartTotals(ctx context.Context, customer domain.Customer, slug string) (*domain.CartTotals, error) {
	cart, err := s.GetCartBySlug(ctx, customer, slug)
	if err != nil {
		return nil, err
	}

	totals, err := s.cache.GetTotals(ctx, slug)
	if err == nil {
		return totals, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("cache get error: %v", err)
	}

	t := cart.Totals()
	go func() {
		setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if errSet := s.cache.SetTotals(setCtx, slug, &t); errSet != nil {
			log.Printf("cache set error: %v", errSet)
		}
	}()
	return &t, nil
}

// AddItem adds quantity of a product to the customer's active cart, merging
// with an existing line for the same product.
func (s *CartService) AddItem(ctx context.Context, customer domain.Customer, productSlug string, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrQuantityNotPositive
	}

	product, err := s.catalog.GetBySlug(ctx, productSlug)
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, ErrProductUnavailable
	}
	if quantity > product.Stock {
		return nil, &domain.InsufficientStockError{ProductName: product.Name, Available: product.Stock}
	}

	cart, err := s.repo.GetOrCreateCart(ctx, customer)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.AddItem(ctx, cart.ID, product.ID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(cart.Slug)
	return item, nil
}

// UpdateItem sets a line item's quantity on the customer's active cart.
func (s *CartService) UpdateItem(ctx context.Context, customer domain.Customer, itemID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrQuantityNotPositive
	}

	cart, err := s.repo.GetActiveCart(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.UpdateItemQuantity(ctx, cart.ID, itemID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(cart.Slug)
	return item, nil
}

// RemoveItem deletes a line item from the customer's active cart. The cart
// itself stays.
func (s *CartService) RemoveItem(ctx context.Context, customer domain.Customer, itemID int64) error {
	cart, err := s.repo.GetActiveCart(ctx, customer.ID)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveItem(ctx, cart.ID, itemID); err != nil {
		return err
	}

	s.invalidate(cart.Slug)
	return nil
}

// invalidate drops both cache keys for the slug, best effort.
func (s *CartService) invalidate(slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, slug); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
