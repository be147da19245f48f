package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/model"
)

const processingETA = "1-2 days"

type NotificationService interface {
	// NotifyStatusChange renders and sends the message for a status change. The record carried
	// by the event is marked delivered on success; events without one get a record appended.
	// Delivery failures are logged, not returned.
	NotifyStatusChange(ctx context.Context, event model.OrderStatusChanged) (*model.Notification, error)
	// HandleEvent routes dispatched events; events without a notification are ignored.
	HandleEvent(ctx context.Context, event Event) error
}

func NewNotificationService(
	repo model.NotificationRepository,
	orders model.OrderRepository,
	customers model.CustomerDirectory,
	sender model.NotificationSender,
	trackingURLBase string,
	logger logrus.FieldLogger,
) NotificationService {
	return &notificationService{
		repo:            repo,
		orders:          orders,
		customers:       customers,
		sender:          sender,
		trackingURLBase: strings.TrimSuffix(trackingURLBase, "/"),
		logger:          logger,
	}
}

type notificationService struct {
	repo            model.NotificationRepository
	orders          model.OrderRepository
	customers       model.CustomerDirectory
	sender          model.NotificationSender
	trackingURLBase string
	logger          logrus.FieldLogger
}

func (s *notificationService) HandleEvent(ctx context.Context, event Event) error {
	if e, ok := event.(model.OrderStatusChanged); ok {
		_, err := s.NotifyStatusChange(ctx, e)
		return err
	}
	return nil
}

func (s *notificationService) NotifyStatusChange(ctx context.Context, event model.OrderStatusChanged) (*model.Notification, error) {
	typ, ok := model.NotificationTypeFor(event.To)
	if !ok {
		return nil, nil
	}
	log := s.logger.WithFields(logrus.Fields{"order_id": event.OrderID, "type": typ})

	trackingCode := ""
	if event.TrackingCode != nil {
		trackingCode = *event.TrackingCode
	}
	to, name := s.recipient(ctx, event)
	data := templateData{
		Name:         name,
		OrderID:      event.OrderID.String(),
		ETA:          processingETA,
		TrackingCode: trackingCode,
		TrackingURL:  s.trackingURL(trackingCode),
	}

	delivered := false
	switch message, err := renderNotification(typ, to, data); {
	case err != nil:
		log.WithError(err).Error("failed to render notification")
	case to == "":
		log.Info("no recipient for order, notification not sent")
	default:
		if err := s.sender.Send(ctx, message); err != nil {
			log.WithError(err).Warn("notification delivery failed")
		} else {
			delivered = true
		}
	}

	if event.Notification != nil {
		notification := *event.Notification
		if delivered {
			if err := s.repo.MarkDelivered(ctx, notification.ID); err != nil {
				return nil, err
			}
			notification.Delivered = true
		}
		return &notification, nil
	}

	notification, err := newNotificationRecord(s.repo, event, typ)
	if err != nil {
		return nil, err
	}
	notification.Delivered = delivered
	if err := s.repo.Append(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func newNotificationRecord(repo model.NotificationRepository, event model.OrderStatusChanged, typ model.NotificationType) (*model.Notification, error) {
	id, err := repo.NextID()
	if err != nil {
		return nil, err
	}
	trackingCode := ""
	if event.TrackingCode != nil {
		trackingCode = *event.TrackingCode
	}
	return &model.Notification{
		ID:         id,
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Type:       typ,
		Message:    recordMessage(typ, trackingCode),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// recipient prefers the registered customer and falls back to the shipping address of guest orders.
func (s *notificationService) recipient(ctx context.Context, event model.OrderStatusChanged) (email, name string) {
	name = "Customer"
	if event.CustomerID != nil && s.customers != nil {
		customer, err := s.customers.Find(ctx, *event.CustomerID)
		if err != nil {
			s.logger.WithError(err).WithField("customer_id", *event.CustomerID).Warn("failed to look up customer")
		} else if customer.Email != "" {
			if customer.Name != "" {
				name = customer.Name
			}
			return customer.Email, name
		}
	}

	order, err := s.orders.Find(ctx, event.OrderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Warn("failed to load order for notification")
		return "", name
	}
	if order.ShippingAddress.Name != "" {
		name = order.ShippingAddress.Name
	}
	return order.ShippingAddress.Email, name
}

func (s *notificationService) trackingURL(code string) string {
	if code == "" || s.trackingURLBase == "" {
		return "#"
	}
	return s.trackingURLBase + "/" + code
}
