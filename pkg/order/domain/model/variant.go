package model

import (
	"context"

	"github.com/google/uuid"
)

// DefaultColor marks a request that does not care about color.
const DefaultColor = "Default"

type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Size      *string
	Color     *string
	Stock     int
	Images    []string
}

// Reservation backs one order line with stock of one variant.
type Reservation struct {
	VariantID uuid.UUID
	Quantity  int
}

type VariantRepository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]Variant, error)
	Find(ctx context.Context, id uuid.UUID) (*Variant, error)
	// DecrementStock subtracts quantity only when stock >= quantity, as one atomic step.
	// It reports false when the condition did not hold.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}
