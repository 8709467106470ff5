package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-shop/internal/domain"
)

const (
	cartTTL   = time.Hour
	totalsTTL = 5 * time.Minute
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

type RedisCache struct {
	client *redis.Client
}

func (r *RedisCache) GetCart(ctx context.Context, slug string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCache) SetCart(ctx context.Context, slug string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(slug), data, cartTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) GetTotals(ctx context.Context, slug string) (*domain.CartTotals, error) {
	data, err := r.client.Get(ctx, totalsKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var totals domain.CartTotals
	if err := json.Unmarshal(data, &totals); err != nil {
		return nil, fmt.Errorf("unmarshal totals failed: %w", err)
	}
	return &totals, nil
}

func (r *RedisCache) SetTotals(ctx context.Context, slug string, totals *domain.CartTotals) error {
	data, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("marshal totals failed: %w", err)
	}
	if err := r.client.Set(ctx, totalsKey(slug), data, totalsTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops both keys for the slug. Write-invalidate, not
// write-through: the next read repopulates from the persisted state.
func (r *RedisCache) Invalidate(ctx context.Context, slug string) error {
	if err := r.client.Del(ctx, cartKey(slug), totalsKey(slug)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(slug string) string {
	return fmt.Sprintf("cart:%s", slug)
}

func totalsKey(slug string) string {
	return fmt.Sprintf("cart-totals:%s", slug)
}
