package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop/internal/cache"
	"go-shop/internal/catalog"
	"go-shop/internal/domain"
	"go-shop/internal/repository"
)

// memCartRepo mirrors the postgres repository's contract in memory: every
// item mutation applies the signed delta to the owning cart's totals under
// one lock, so concurrent callers observe the same consistency.
type memCartRepo struct {
	mu     sync.Mutex
	nextID int64
	carts  map[int64]*domain.Cart
	byID   map[int64]*domain.Product
}

func newMemCartRepo(products ...*domain.Product) *memCartRepo {
	r := &memCartRepo{
		carts: make(map[int64]*domain.Cart),
		byID:  make(map[int64]*domain.Product),
	}
	for _, p := range products {
		r.byID[p.ID] = p
	}
	return r
}

func (r *memCartRepo) GetOrCreateCart(ctx context.Context, customer domain.Customer) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.CustomerID == customer.ID && c.IsActive && !c.IsOrdered {
			return cloneCart(c), nil
		}
	}
	r.nextID++
	c := &domain.Cart{
		ID:            r.nextID,
		CustomerID:    customer.ID,
		CustomerEmail: customer.Email,
		Slug:          domain.CartSlug(customer.Email),
		IsActive:      true,
	}
	r.carts[c.ID] = c
	return cloneCart(c), nil
}

func (r *memCartRepo) GetCartBySlug(ctx context.Context, slug string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.Slug == slug {
			return cloneCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (r *memCartRepo) GetActiveCart(ctx context.Context, customerID int64) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.CustomerID == customerID && c.IsActive && !c.IsOrdered {
			return cloneCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (r *memCartRepo) GetCartItem(ctx context.Context, cartID, itemID int64) (*domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	for _, it := range c.Items {
		if it.ID == itemID {
			item := it
			return &item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (r *memCartRepo) AddItem(ctx context.Context, cartID, productID int64, quantity int) (*domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	p, ok := r.byID[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	for i, it := range c.Items {
		if it.ProductID == productID {
			old := it
			it.Quantity += quantity
			it.UnitPrice = p.Price
			if err := it.Validate(p); err != nil {
				return nil, err
			}
			c.Items[i] = it
			c.ApplyDelta(domain.UpdateDelta(old, it))
			if err := c.ValidateTotals(); err != nil {
				return nil, err
			}
			item := it
			return &item, nil
		}
	}

	r.nextID++
	item := domain.CartItem{
		ID:        r.nextID,
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: p.Price,
	}
	if err := item.Validate(p); err != nil {
		return nil, err
	}
	c.Items = append(c.Items, item)
	c.ApplyDelta(domain.InsertDelta(item))
	if err := c.ValidateTotals(); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *memCartRepo) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	for i, it := range c.Items {
		if it.ID == itemID {
			old := it
			it.Quantity = quantity
			if err := it.Validate(nil); err != nil {
				return nil, err
			}
			c.Items[i] = it
			c.ApplyDelta(domain.UpdateDelta(old, it))
			if err := c.ValidateTotals(); err != nil {
				return nil, err
			}
			item := it
			return &item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (r *memCartRepo) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	for i, it := range c.Items {
		if it.ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.ApplyDelta(domain.DeleteDelta(it))
			return c.ValidateTotals()
		}
	}
	return repository.ErrCartItemNotFound
}

func (r *memCartRepo) ReconcileCart(ctx context.Context, cartID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Reconcile()
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

type memCache struct {
	mu            sync.Mutex
	carts         map[string]*domain.Cart
	totals        map[string]*domain.CartTotals
	invalidations int
}

func newMemCache() *memCache {
	return &memCache{
		carts:  make(map[string]*domain.Cart),
		totals: make(map[string]*domain.CartTotals),
	}
}

func (m *memCache) GetCart(ctx context.Context, slug string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[slug]; ok {
		return c, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *memCache) SetCart(ctx context.Context, slug string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[slug] = cart
	return nil
}

func (m *memCache) GetTotals(ctx context.Context, slug string) (*domain.CartTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.totals[slug]; ok {
		return t, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *memCache) SetTotals(ctx context.Context, slug string, totals *domain.CartTotals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[slug] = totals
	return nil
}

func (m *memCache) Invalidate(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, slug)
	delete(m.totals, slug)
	m.invalidations++
	return nil
}

func (m *memCache) cachedCart(slug string) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[slug]
}

func (m *memCache) invalidated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidations
}

type memCatalog struct {
	bySlug map[string]*domain.Product
}

func newMemCatalog(products ...*domain.Product) *memCatalog {
	m := &memCatalog{bySlug: make(map[string]*domain.Product)}
	for _, p := range products {
		m.bySlug[p.Slug] = p
	}
	return m
}

func (m *memCatalog) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	if p, ok := m.bySlug[slug]; ok {
		return p, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (m *memCatalog) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	for _, p := range m.bySlug {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

var testCustomer = domain.Customer{ID: 1, Email: "user@example.com"}

func testProducts() []*domain.Product {
	return []*domain.Product{
		{ID: 1, Name: "Widget", Slug: "widget", Price: decimal.RequireFromString("10.00"), Stock: 100, Available: true},
		{ID: 2, Name: "Gadget", Slug: "gadget", Price: decimal.RequireFromString("5.50"), Stock: 5, Available: true},
		{ID: 3, Name: "Relic", Slug: "relic", Price: decimal.RequireFromString("99.99"), Stock: 10, Available: false},
	}
}

func setupCartService() (*CartService, *memCartRepo, *memCache) {
	products := testProducts()
	repo := newMemCartRepo(products...)
	mc := newMemCache()
	return NewCartService(repo, newMemCatalog(products...), mc), repo, mc
}

func TestCartService_AddItem(t *testing.T) {
	svc, repo, mc := setupCartService()
	ctx := context.Background()

	item, err := svc.AddItem(ctx, testCustomer, "widget", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("10.00")))

	_, err = svc.AddItem(ctx, testCustomer, "gadget", 1)
	require.NoError(t, err)

	cart, err := repo.GetActiveCart(ctx, testCustomer.ID)
	require.NoError(t, err)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, 3, cart.TotalItems)
	assert.NoError(t, cart.ValidateTotals())
	assert.Equal(t, 2, mc.invalidated())
}

func TestCartService_AddItem_MergesExistingLine(t *testing.T) {
	svc, repo, _ := setupCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testCustomer, "widget", 2)
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, testCustomer, "widget", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	cart, err := repo.GetActiveCart(ctx, testCustomer.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("50.00")))
}

func TestCartService_AddItem_Rejections(t *testing.T) {
	svc, _, _ := setupCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testCustomer, "widget", 0)
	assert.ErrorIs(t, err, domain.ErrQuantityNotPositive)

	_, err = svc.AddItem(ctx, testCustomer, "relic", 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = svc.AddItem(ctx, testCustomer, "gadget", 6)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)

	_, err = svc.AddItem(ctx, testCustomer, "no-such-product", 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCartService_AddItem_QuantityEqualToStock(t *testing.T) {
	svc, repo, _ := setupCartService()
	ctx := context.Background()

	// stock is an inclusive bound: buying out the last unit succeeds
	item, err := svc.AddItem(ctx, testCustomer, "gadget", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	cart, err := repo.GetActiveCart(ctx, testCustomer.ID)
	require.NoError(t, err)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("27.50")))
	assert.Equal(t, 5, cart.TotalItems)

	// one more unit crosses the bound
	_, err = svc.AddItem(ctx, testCustomer, "gadget", 1)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
}

func TestCartService_UpdateAndRemoveItem(t *testing.T) {
	svc, repo, _ := setupCartService()
	ctx := context.Background()

	added, err := svc.AddItem(ctx, testCustomer, "widget", 2)
	require.NoError(t, err)
	other, err := svc.AddItem(ctx, testCustomer, "gadget", 1)
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, testCustomer, added.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	cart, err := repo.GetActiveCart(ctx, testCustomer.ID)
	require.NoError(t, err)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("45.50")))
	assert.Equal(t, 5, cart.TotalItems)

	require.NoError(t, svc.RemoveItem(ctx, testCustomer, other.ID))
	cart, err = repo.GetActiveCart(ctx, testCustomer.ID)
	require.NoError(t, err)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("40.00")))
	assert.Equal(t, 4, cart.TotalItems)
	assert.NoError(t, cart.ValidateTotals())

	err = svc.RemoveItem(ctx, testCustomer, 9999)
	assert.ErrorIs(t, err, repository.ErrCartItemNotFound)
}

func TestCartService_GetCartBySlug_ReadThrough(t *testing.T) {
	svc, _, mc := setupCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testCustomer, "widget", 1)
	require.NoError(t, err)

	slug := domain.CartSlug(testCustomer.Email)
	cart, err := svc.GetCartBySlug(ctx, testCustomer, slug)
	require.NoError(t, err)
	assert.Equal(t, slug, cart.Slug)

	// the miss populates the cache in the background
	assert.Eventually(t, func() bool {
		return mc.cachedCart(slug) != nil
	}, time.Second, 10*time.Millisecond)

	// a different customer cannot read the cart even on a cache hit
	_, err = svc.GetCartBySlug(ctx, domain.Customer{ID: 2, Email: "other@example.com"}, slug)
	assert.ErrorIs(t, err, ErrCartNotOwned)

	_, err = svc.GetCartBySlug(ctx, testCustomer, "cart-unknown")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestCartService_GetCartTotals(t *testing.T) {
	svc, _, mc := setupCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testCustomer, "widget", 2)
	require.NoError(t, err)

	slug := domain.CartSlug(testCustomer.Email)
	totals, err := svc.GetCartTotals(ctx, testCustomer, slug)
	require.NoError(t, err)
	assert.True(t, totals.TotalPrice.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, 2, totals.TotalItems)
	assert.Equal(t, 1, totals.ItemsCount)

	// a cached totals view is served as-is
	stale := &domain.CartTotals{TotalPrice: decimal.RequireFromString("1.00"), TotalItems: 1}
	require.NoError(t, mc.SetTotals(ctx, slug, stale))
	totals, err = svc.GetCartTotals(ctx, testCustomer, slug)
	require.NoError(t, err)
	assert.True(t, totals.TotalPrice.Equal(stale.TotalPrice))
}

func TestCartService_GetCartTotals_OwnershipOnCacheHit(t *testing.T) {
	svc, _, mc := setupCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testCustomer, "widget", 2)
	require.NoError(t, err)

	slug := domain.CartSlug(testCustomer.Email)
	cached := &domain.CartTotals{TotalPrice: decimal.RequireFromString("20.00"), TotalItems: 2, ItemsCount: 1}
	require.NoError(t, mc.SetTotals(ctx, slug, cached))

	// a cached totals view never bypasses the owner check
	_, err = svc.GetCartTotals(ctx, domain.Customer{ID: 2, Email: "other@example.com"}, slug)
	assert.ErrorIs(t, err, ErrCartNotOwned)

	totals, err := svc.GetCartTotals(ctx, testCustomer, slug)
	require.NoError(t, err)
	assert.True(t, totals.TotalPrice.Equal(cached.TotalPrice))
}

func TestCartService_ConcurrentAdds_TotalsStayConsistent(t *testing.T) {
	svc, repo, _ := setupCartService()
	ctx := context.Background()

	// a first add creates the cart so the workers race on mutation, not
	// creation
	_, err := svc.AddItem(ctx, testCustomer, "widget", 1)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, testCustomer, "widget", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := repo.GetActiveCart(ctx, testCustomer.ID)
	require.NoError(t, err)
	assert.Equal(t, workers+1, cart.TotalItems)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("210.00")))
	assert.NoError(t, cart.ValidateTotals())
}
