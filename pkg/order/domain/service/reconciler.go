package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"storefront/pkg/order/domain/model"
)

var ErrEmptyPaymentID = errors.New("payment id is required")

type PaymentConfirmation struct {
	PaymentID   string
	AmountCents int64
}

type ReconcileOutcome int

const (
	Reconciled ReconcileOutcome = iota
	AlreadyReconciled
	UnknownPayment
	PaidOrderCancelled
)

func (o ReconcileOutcome) String() string {
	switch o {
	case Reconciled:
		return "reconciled"
	case AlreadyReconciled:
		return "already_reconciled"
	case UnknownPayment:
		return "unknown_payment"
	case PaidOrderCancelled:
		return "paid_order_cancelled"
	}
	return "unknown"
}

// PaymentLedger remembers gateway payment ids that were already applied.
type PaymentLedger interface {
	Seen(ctx context.Context, paymentID string) (bool, error)
	Mark(ctx context.Context, paymentID string) error
}

type PaymentReconciler interface {
	// Reconcile applies a confirmed payment. Delivering the same confirmation again is a no-op.
	Reconcile(ctx context.Context, confirmation PaymentConfirmation) (ReconcileOutcome, error)
}

// NewPaymentReconciler builds a reconciler; ledger may be nil, the order status guard alone keeps it idempotent.
func NewPaymentReconciler(orders model.OrderRepository, orderService OrderService, ledger PaymentLedger, logger logrus.FieldLogger) PaymentReconciler {
	return &paymentReconciler{orders: orders, orderService: orderService, ledger: ledger, logger: logger}
}

type paymentReconciler struct {
	orders       model.OrderRepository
	orderService OrderService
	ledger       PaymentLedger
	logger       logrus.FieldLogger
}

func (r *paymentReconciler) Reconcile(ctx context.Context, confirmation PaymentConfirmation) (ReconcileOutcome, error) {
	ctx, span := tracer.Start(ctx, "payment.reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", confirmation.PaymentID))

	if confirmation.PaymentID == "" {
		return 0, ErrEmptyPaymentID
	}
	log := r.logger.WithField("payment_id", confirmation.PaymentID)

	if r.ledger != nil {
		seen, err := r.ledger.Seen(ctx, confirmation.PaymentID)
		if err != nil {
			log.WithError(err).Warn("payment ledger unavailable, relying on order status")
		} else if seen {
			log.Debug("payment already reconciled")
			return AlreadyReconciled, nil
		}
	}

	order, err := r.orders.FindByPaymentReference(ctx, confirmation.PaymentID)
	if errors.Is(err, model.ErrOrderNotFound) {
		log.Info("no order for payment, ignoring")
		return UnknownPayment, nil
	}
	if err != nil {
		return 0, err
	}
	log = log.WithField("order_id", order.ID)
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	if confirmation.AmountCents > 0 && confirmation.AmountCents != order.TotalCents {
		log.WithFields(logrus.Fields{
			"amount_cents": confirmation.AmountCents,
			"total_cents":  order.TotalCents,
		}).Warn("captured amount differs from order total")
	}

	applied, err := r.orderService.MarkOrderAsPaid(ctx, order.ID)
	if errors.Is(err, model.ErrInvalidTransition) {
		log.WithError(err).Warn("payment confirmed for cancelled order")
		return PaidOrderCancelled, nil
	}
	if err != nil {
		return 0, err
	}

	outcome := AlreadyReconciled
	if applied {
		outcome = Reconciled
	}
	log.WithField("outcome", outcome).Info("payment reconciled")

	if r.ledger != nil {
		if err := r.ledger.Mark(ctx, confirmation.PaymentID); err != nil {
			log.WithError(err).Warn("failed to record payment in ledger")
		}
	}
	return outcome, nil
}
