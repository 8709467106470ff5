package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"go-shop/internal/domain"
)

type contextKey string

const (
	customerKey  contextKey = "customer"
	requestIDKey contextKey = "request_id"
)

// HeaderAuthMiddleware resolves the customer identity from headers set by
// the upstream auth proxy (replace with real JWT validation behind a real
// gateway).
func HeaderAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-Customer-ID"), 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
			return
		}
		customer := domain.Customer{
			ID:    id,
			Email: r.Header.Get("X-Customer-Email"),
		}
		ctx := context.WithValue(r.Context(), customerKey, customer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func customerFromContext(ctx context.Context) (domain.Customer, bool) {
	customer, ok := ctx.Value(customerKey).(domain.Customer)
	return customer, ok
}
