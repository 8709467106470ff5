package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"go-shop/internal/domain"
)

// CartAPI is the slice of the cart service the handlers need.
type CartAPI interface {
	GetOrCreateCart(ctx context.Context, customer domain.Customer) (*domain.Cart, error)
	GetCartBySlug(ctx context.Context, customer domain.Customer, slug string) (*domain.Cart, error)
	GetCartTotals(ctx context.Context, customer domain.Customer, slug string) (*domain.CartTotals, error)
	AddItem(ctx context.Context, customer domain.Customer, productSlug string, quantity int) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, customer domain.Customer, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, customer domain.Customer, itemID int64) error
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
}

func NewCartHandler(carts CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type AddItemRequestDTO struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type UpdateItemRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, customer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) GetCartBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	cart, err := h.carts.GetCartBySlug(ctx, customer, chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, customer)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	totals, err := h.carts.GetCartTotals(ctx, customer, cart.Slug)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Product == "" {
		respondError(w, http.StatusBadRequest, "invalid_product", "product slug is required")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	item, err := h.carts.AddItem(ctx, customer, req.Product, req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a positive integer")
		return
	}

	var req UpdateItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	item, err := h.carts.UpdateItem(ctx, customer, itemID, req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a positive integer")
		return
	}

	if err := h.carts.RemoveItem(ctx, customer, itemID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
