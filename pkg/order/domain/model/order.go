package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ShippingAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID               uuid.UUID
	CustomerID       *uuid.UUID
	PaymentReference *string
	TotalCents       int64
	ShippingAddress  ShippingAddress
	TrackingCode     *string
	Status           OrderStatus
	Lines            []Line
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Line keeps the unit price paid at checkout, not the live catalog price.
type Line struct {
	ID             uuid.UUID
	VariantID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
}

func (o *Order) Reservations() []Reservation {
	reservations := make([]Reservation, 0, len(o.Lines))
	for _, line := range o.Lines {
		reservations = append(reservations, Reservation{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	return reservations
}

type OrderRepository interface {
	NextID() (uuid.UUID, error)
	// Create stores the order together with its lines.
	Create(ctx context.Context, order *Order) error
	Find(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error)
	// Update persists status and tracking code. It fails with ErrOptimisticLock
	// unless the stored version equals order.Version-1.
	Update(ctx context.Context, order *Order) error
}
