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

// OrderAPI is the slice of the order service the handlers need.
type OrderAPI interface {
	Checkout(ctx context.Context, customer domain.Customer, method domain.ShippingMethod, discountCode string) (*domain.Order, error)
	GetOrder(ctx context.Context, customer domain.Customer, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, customer domain.Customer) ([]*domain.Order, error)
	SaveAddress(ctx context.Context, customer domain.Customer, address *domain.ShippingAddress) error
	ListAddresses(ctx context.Context, customer domain.Customer) ([]*domain.ShippingAddress, error)
}

type OrderHandler struct {
	orders  OrderAPI
	timeout time.Duration
}

func NewOrderHandler(orders OrderAPI, timeout time.Duration) *OrderHandler {
	return &OrderHandler{orders: orders, timeout: timeout}
}

type CheckoutRequestDTO struct {
	ShippingMethod string `json:"shipping_method"`
	DiscountCode   string `json:"discount_code,omitempty"`
}

type AddressRequestDTO struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company,omitempty"`
	Line1      string `json:"address_line_1"`
	Line2      string `json:"address_line_2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"is_default"`
}

// orderResponse decorates the stored order with its computed grand total.
type orderResponse struct {
	*domain.Order
	GrandTotal string `json:"grand_total"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	return orderResponse{Order: order, GrandTotal: order.GrandTotal().StringFixed(2)}
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	method := domain.ShippingMethod(req.ShippingMethod)
	if req.ShippingMethod == "" {
		method = domain.ShippingStandard
	}

	order, err := h.orders.Checkout(ctx, customer, method, req.DiscountCode)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a positive integer")
		return
	}

	order, err := h.orders.GetOrder(ctx, customer, orderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) SaveAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	var req AddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	address := &domain.ShippingAddress{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Company:    req.Company,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	}
	if err := h.orders.SaveAddress(ctx, customer, address); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, address)
}

func (h *OrderHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	addresses, err := h.orders.ListAddresses(ctx, customer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if addresses == nil {
		addresses = []*domain.ShippingAddress{}
	}
	respondJSON(w, http.StatusOK, addresses)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customer, ok := customerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return
	}

	orders, err := h.orders.ListOrders(ctx, customer)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	respondJSON(w, http.StatusOK, resp)
}
