package service

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCartNotOwned       = errors.New("cart does not belong to this customer")
	ErrOrderNotOwned      = errors.New("order does not belong to this customer")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInvalidShipping    = errors.New("unknown shipping method")
)
