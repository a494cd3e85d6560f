package services

import (
	"errors"

	"storefront/internal/repositories"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = repositories.ErrNotFound
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrOutOfStock             = errors.New("out of stock")
	ErrDuplicateReturnRequest = errors.New("return request already exists for this order")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrConflict               = errors.New("conflict")
)
