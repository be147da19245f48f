package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOptimisticLock    = errors.New("order has been modified by another transaction")
	ErrVariantNotFound   = errors.New("product variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrNegativePrice     = errors.New("price cannot be negative")
	ErrEmptyOrder        = errors.New("order must have at least one line")
	ErrDuplicatePayment  = errors.New("payment reference is already linked to another order")
	ErrInvalidSignature  = errors.New("invalid payment event signature")
)

type VariantNotFoundError struct {
	ProductID uuid.UUID
	Size      *string
	Color     string
}

func (e *VariantNotFoundError) Error() string {
	size := "<none>"
	if e.Size != nil {
		size = *e.Size
	}
	return fmt.Sprintf("%s: product %s (size: %s, color: %s)", ErrVariantNotFound, e.ProductID, size, e.Color)
}

func (e *VariantNotFoundError) Is(target error) bool { return target == ErrVariantNotFound }

type InsufficientStockError struct {
	VariantID uuid.UUID
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s for variant %s (requested %d)", ErrInsufficientStock, e.VariantID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
