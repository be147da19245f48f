package service

import "go.opentelemetry.io/otel"

type Event interface {
	Type() string
}

// EventDispatcher receives events after the change that produced them has been committed.
type EventDispatcher interface {
	Dispatch(event Event) error
}

var tracer = otel.Tracer("storefront/order")
