package model

import "github.com/google/uuid"

type OrderCreated struct {
	OrderID    uuid.UUID
	CustomerID *uuid.UUID
	TotalCents int64
}

func (e OrderCreated) Type() string { return "OrderCreated" }

type OrderStatusChanged struct {
	OrderID      uuid.UUID
	CustomerID   *uuid.UUID
	From         OrderStatus
	To           OrderStatus
	TrackingCode *string
	// Notification is the record appended when the change committed. Delivery only updates it.
	Notification *Notification
}

func (e OrderStatusChanged) Type() string { return "OrderStatusChanged" }

func (e OrderCreated) AggregateID() uuid.UUID       { return e.OrderID }
func (e OrderStatusChanged) AggregateID() uuid.UUID { return e.OrderID }
