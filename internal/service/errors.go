package service

import "errors"

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrMissingCustomer = errors.New("missing customer or session id")
)
