package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationProcessing NotificationType = "processing"
	NotificationShipped    NotificationType = "shipped"
	NotificationDelivered  NotificationType = "delivered"
	NotificationCancelled  NotificationType = "cancelled"
)

// NotificationTypeFor maps a destination status to its notification type.
func NotificationTypeFor(status OrderStatus) (NotificationType, bool) {
	switch status {
	case Processing:
		return NotificationProcessing, true
	case Shipped:
		return NotificationShipped, true
	case Delivered:
		return NotificationDelivered, true
	case Cancelled:
		return NotificationCancelled, true
	}
	return "", false
}

// Notification is an append-only record, written whether or not delivery succeeded.
type Notification struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	CustomerID *uuid.UUID
	Type       NotificationType
	Message    string
	Delivered  bool
	CreatedAt  time.Time
}

type NotificationRepository interface {
	NextID() (uuid.UUID, error)
	Append(ctx context.Context, notification *Notification) error
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	LastForOrder(ctx context.Context, orderID uuid.UUID) (*Notification, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]Notification, error)
}

// Message is a rendered notification ready for a delivery channel.
type Message struct {
	To       string
	Subject  string
	Template string
	Body     string
}

type NotificationSender interface {
	Send(ctx context.Context, message Message) error
}

type Customer struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// CustomerDirectory is provided by the identity collaborator.
type CustomerDirectory interface {
	Find(ctx context.Context, id uuid.UUID) (*Customer, error)
}
