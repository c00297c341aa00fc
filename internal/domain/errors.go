package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidOrder        = fmt.Errorf("%w: invalid order", ErrValidation)
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrConflict            = errors.New("concurrent modification, retry")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPaymentNotFound     = errors.New("payment not found")
)
