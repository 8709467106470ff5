package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"go-shop/internal/catalog"
	"go-shop/internal/domain"
	"go-shop/internal/repository"
	"go-shop/internal/service"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps the core error taxonomy to HTTP statuses:
// validation 400, stock 409, not found 404, consistency 422, storage 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		available := stockErr.Available
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:     stockErr.Error(),
			Code:      "insufficient_stock",
			Available: &available,
		})
	case errors.Is(err, domain.ErrQuantityNotPositive),
		errors.Is(err, domain.ErrNegativePrice),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrInvalidShipping),
		errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrCartItemNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrDiscountNotFound),
		errors.Is(err, repository.ErrAddressNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, service.ErrCartNotOwned),
		errors.Is(err, service.ErrOrderNotOwned):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrDiscountExceedsTotal),
		errors.Is(err, domain.ErrTotalsMismatch),
		errors.Is(err, domain.ErrPaidOrderPending),
		errors.Is(err, domain.ErrPaymentNotPaid),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrNegativeTotals),
		errors.Is(err, repository.ErrCartNotActive),
		errors.Is(err, repository.ErrDiscountExhausted),
		errors.Is(err, repository.ErrDuplicateOrder):
		respondError(w, http.StatusUnprocessableEntity, "consistency_violation", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
