package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the cart and order handlers behind the shared middleware
// stack.
func NewRouter(carts CartAPI, orders OrderAPI, requestTimeout time.Duration) http.Handler {
	cartHandler := NewCartHandler(carts, requestTimeout)
	orderHandler := NewOrderHandler(orders, requestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(HeaderAuthMiddleware)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Get("/totals", cartHandler.GetTotals)
			r.Get("/{slug}", cartHandler.GetCartBySlug)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{item_id}", cartHandler.UpdateItem)
			r.Delete("/items/{item_id}", cartHandler.RemoveItem)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.ListOrders)
			r.Post("/", orderHandler.Checkout)
			r.Get("/{order_id}", orderHandler.GetOrder)
		})
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", orderHandler.ListAddresses)
			r.Post("/", orderHandler.SaveAddress)
		})
	})

	return r
}
