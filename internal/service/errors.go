package service

import (
	"checkout-reconciler/internal/repository"
	"errors"
)

var (
	ErrOrderNotFound       = repository.ErrOrderNotFound
	ErrOrderAlreadyPaid    = errors.New("order already paid")
	ErrZeroTotal           = errors.New("order total must be greater than zero")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed by provider")
	ErrReferenceMismatch   = errors.New("provider reference belongs to another order")
	ErrInvalidInput        = errors.New("invalid input")

	// ErrDuplicateEvent is an internal signal: the event was already applied.
	ErrDuplicateEvent = repository.ErrDuplicateEvent
)
