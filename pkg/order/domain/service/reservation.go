package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/model"
)

type ReservationLedger interface {
	// Reserve decrements stock for every reservation or, on failure, for none of them.
	Reserve(ctx context.Context, reservations []model.Reservation) error
	// Release gives reserved stock back.
	Release(ctx context.Context, reservations []model.Reservation) error
}

func NewReservationLedger(repo model.VariantRepository, logger logrus.FieldLogger) ReservationLedger {
	return &reservationLedger{repo: repo, logger: logger}
}

type reservationLedger struct {
	repo   model.VariantRepository
	logger logrus.FieldLogger
}

func (l *reservationLedger) Reserve(ctx context.Context, reservations []model.Reservation) error {
	for _, r := range reservations {
		if r.Quantity <= 0 {
			return model.ErrInvalidQuantity
		}
	}

	for i, r := range reservations {
		ok, err := l.repo.DecrementStock(ctx, r.VariantID, r.Quantity)
		if err != nil {
			l.compensate(ctx, reservations[:i])
			return errors.Wrapf(err, "failed to reserve variant %s", r.VariantID)
		}
		if !ok {
			l.compensate(ctx, reservations[:i])
			return &model.InsufficientStockError{VariantID: r.VariantID, Requested: r.Quantity}
		}
	}
	return nil
}

func (l *reservationLedger) Release(ctx context.Context, reservations []model.Reservation) error {
	var firstErr error
	for _, r := range reservations {
		if err := l.repo.IncrementStock(ctx, r.VariantID, r.Quantity); err != nil {
			l.logger.WithError(err).WithFields(logrus.Fields{
				"variant_id": r.VariantID,
				"quantity":   r.Quantity,
			}).Error("failed to release stock")
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "failed to release variant %s", r.VariantID)
			}
		}
	}
	return firstErr
}

// compensate reverts already applied decrements. It must run even if the caller gave up.
func (l *reservationLedger) compensate(ctx context.Context, applied []model.Reservation) {
	if len(applied) == 0 {
		return
	}
	_ = l.Release(context.WithoutCancel(ctx), applied)
}
