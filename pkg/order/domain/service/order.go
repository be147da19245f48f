package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/pkg/order/domain/model"
)

const maxTransitionAttempts = 3

type CartLine struct {
	ProductID      uuid.UUID
	Size           *string
	Color          string
	Quantity       int
	UnitPriceCents int64
}

type CreateOrderRequest struct {
	CustomerID       *uuid.UUID
	PaymentReference *string
	Lines            []CartLine
	ShippingAddress  model.ShippingAddress
	TotalCents       int64
}

type OrderView struct {
	Order            model.Order
	LastNotification *model.Notification
}

type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (uuid.UUID, error)
	// SetOrderStatus is the operator entry point. Processing can only be reached through MarkOrderAsPaid.
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, trackingCode *string) error
	// MarkOrderAsPaid moves a Pending order to Processing. It reports false without error
	// when the order has already left Pending for Processing or a later fulfilment status.
	MarkOrderAsPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]OrderView, error)
	ListNotifications(ctx context.Context, orderID uuid.UUID) ([]model.Notification, error)
	Restock(ctx context.Context, variantID uuid.UUID, quantity int) error
}

type OrderServiceOption func(*orderService)

// WithRestockOnCancel controls whether cancelling an order gives its stock back.
func WithRestockOnCancel(restock bool) OrderServiceOption {
	return func(s *orderService) { s.restockOnCancel = restock }
}

func NewOrderService(
	orders model.OrderRepository,
	notifications model.NotificationRepository,
	variants model.VariantRepository,
	resolver VariantResolver,
	ledger ReservationLedger,
	dispatcher EventDispatcher,
	logger logrus.FieldLogger,
	opts ...OrderServiceOption,
) OrderService {
	s := &orderService{
		orders:          orders,
		notifications:   notifications,
		variants:        variants,
		resolver:        resolver,
		ledger:          ledger,
		dispatcher:      dispatcher,
		logger:          logger,
		restockOnCancel: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type orderService struct {
	orders          model.OrderRepository
	notifications   model.NotificationRepository
	variants        model.VariantRepository
	resolver        VariantResolver
	ledger          ReservationLedger
	dispatcher      EventDispatcher
	logger          logrus.FieldLogger
	restockOnCancel bool
}

func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "order.create")
	defer span.End()

	if err := validateCreateOrder(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return uuid.Nil, err
	}

	lines := make([]model.Line, 0, len(req.Lines))
	for _, cartLine := range req.Lines {
		variant, err := s.resolver.Resolve(ctx, cartLine.ProductID, cartLine.Size, cartLine.Color)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return uuid.Nil, err
		}
		lineID, err := s.orders.NextID()
		if err != nil {
			return uuid.Nil, err
		}
		lines = append(lines, model.Line{
			ID:             lineID,
			VariantID:      variant.ID,
			Quantity:       cartLine.Quantity,
			UnitPriceCents: cartLine.UnitPriceCents,
		})
	}

	orderID, err := s.orders.NextID()
	if err != nil {
		return uuid.Nil, err
	}
	now := time.Now().UTC()
	order := &model.Order{
		ID:               orderID,
		CustomerID:       req.CustomerID,
		PaymentReference: req.PaymentReference,
		TotalCents:       req.TotalCents,
		ShippingAddress:  req.ShippingAddress,
		Status:           model.Pending,
		Lines:            lines,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.Int("order.lines", len(lines)))

	reservations := order.Reservations()
	if err := s.ledger.Reserve(ctx, reservations); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return uuid.Nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if releaseErr := s.ledger.Release(context.WithoutCancel(ctx), reservations); releaseErr != nil {
			s.logger.WithError(releaseErr).WithField("order_id", orderID).Error("stock was not released after failed order creation")
		}
		span.SetStatus(codes.Error, err.Error())
		return uuid.Nil, errors.Wrap(err, "failed to persist order")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    orderID,
		"lines":       len(lines),
		"total_cents": order.TotalCents,
	}).Info("order created")

	s.dispatch(model.OrderCreated{OrderID: orderID, CustomerID: order.CustomerID, TotalCents: order.TotalCents})
	return orderID, nil
}

func (s *orderService) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, trackingCode *string) error {
	ctx, span := tracer.Start(ctx, "order.set_status")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.String("order.status", status.String()))

	_, err := s.transition(ctx, orderID, status, trackingCode, func(order *model.Order) (bool, error) {
		if status == model.Processing {
			return false, &model.InvalidTransitionError{From: order.Status, To: status}
		}
		return true, model.CheckTransition(order.Status, status)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *orderService) MarkOrderAsPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return s.transition(ctx, orderID, model.Processing, nil, func(order *model.Order) (bool, error) {
		switch order.Status {
		case model.Pending:
			return true, nil
		case model.Processing, model.Shipped, model.Delivered:
			return false, nil
		}
		return false, &model.InvalidTransitionError{From: order.Status, To: model.Processing}
	})
}

// transition applies a status change under compare-and-set on the order version.
// guard is evaluated against every freshly loaded state; it returns false to skip the change.
func (s *orderService) transition(
	ctx context.Context,
	orderID uuid.UUID,
	to model.OrderStatus,
	trackingCode *string,
	guard func(order *model.Order) (bool, error),
) (bool, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.orders.Find(ctx, orderID)
		if err != nil {
			return false, err
		}

		proceed, err := guard(order)
		if err != nil || !proceed {
			return false, err
		}

		from := order.Status
		order.Status = to
		if to == model.Shipped && trackingCode != nil {
			order.TrackingCode = trackingCode
		}
		err = s.updateOrder(ctx, order)
		if errors.Is(err, model.ErrOptimisticLock) && attempt < maxTransitionAttempts {
			s.logger.WithFields(logrus.Fields{"order_id": orderID, "attempt": attempt}).Debug("concurrent order update, retrying transition")
			continue
		}
		if err != nil {
			return false, err
		}

		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     from,
			"to":       to,
		}).Info("order status changed")

		if to == model.Cancelled && s.restockOnCancel {
			if err := s.ledger.Release(context.WithoutCancel(ctx), order.Reservations()); err != nil {
				s.logger.WithError(err).WithField("order_id", orderID).Error("failed to restock cancelled order")
			}
		}

		event := model.OrderStatusChanged{
			OrderID:      orderID,
			CustomerID:   order.CustomerID,
			From:         from,
			To:           to,
			TrackingCode: order.TrackingCode,
		}
		event.Notification = s.recordNotification(context.WithoutCancel(ctx), event)
		s.dispatch(event)
		return true, nil
	}
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	last, err := s.notifications.LastForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: *order, LastNotification: last}, nil
}

func (s *orderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]OrderView, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		last, err := s.notifications.LastForOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, OrderView{Order: order, LastNotification: last})
	}
	return views, nil
}

func (s *orderService) ListNotifications(ctx context.Context, orderID uuid.UUID) ([]model.Notification, error) {
	if _, err := s.orders.Find(ctx, orderID); err != nil {
		return nil, err
	}
	return s.notifications.ListForOrder(ctx, orderID)
}

func (s *orderService) Restock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return model.ErrInvalidQuantity
	}
	if _, err := s.variants.Find(ctx, variantID); err != nil {
		return err
	}
	if err := s.variants.IncrementStock(ctx, variantID, quantity); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"variant_id": variantID, "quantity": quantity}).Info("variant restocked")
	return nil
}

func (s *orderService) updateOrder(ctx context.Context, order *model.Order) error {
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	return s.orders.Update(ctx, order)
}

// recordNotification appends the undelivered record of a committed change, so it survives
// a dropped event. A nil result leaves appending to the notification worker.
func (s *orderService) recordNotification(ctx context.Context, event model.OrderStatusChanged) *model.Notification {
	typ, ok := model.NotificationTypeFor(event.To)
	if !ok {
		return nil
	}
	notification, err := newNotificationRecord(s.notifications, event, typ)
	if err == nil {
		err = s.notifications.Append(ctx, notification)
	}
	if err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Error("failed to record notification")
		return nil
	}
	return notification
}

func (s *orderService) dispatch(event Event) {
	if err := s.dispatcher.Dispatch(event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type()).Error("failed to dispatch event")
	}
}

func validateCreateOrder(req CreateOrderRequest) error {
	if len(req.Lines) == 0 {
		return model.ErrEmptyOrder
	}
	if req.TotalCents < 0 {
		return model.ErrNegativePrice
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return model.ErrInvalidQuantity
		}
		if line.UnitPriceCents < 0 {
			return model.ErrNegativePrice
		}
	}
	return nil
}
