package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/order/domain/model"
	"storefront/pkg/order/domain/service"
)

func TestReconcile_Idempotent(t *testing.T) {
	f := setup(t)
	product := uuid.New()
	f.variants.Add(product, nil, nil, 3)
	orderID := f.createOrder(t, product, 1, strPtr("pi_twice"))
	ctx := context.Background()

	outcome, err := f.reconciler.Reconcile(ctx, service.PaymentConfirmation{PaymentID: "pi_twice", AmountCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, service.Reconciled, outcome)

	outcome, err = f.reconciler.Reconcile(ctx, service.PaymentConfirmation{PaymentID: "pi_twice", AmountCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, service.AlreadyReconciled, outcome)

	assert.Equal(t, model.Processing, f.orders.Status(orderID))
	assert.Equal(t, 1, f.orders.updates)
	assert.Equal(t, 1, f.notifications.CountOfType(orderID, model.NotificationProcessing))
}

func TestReconcile_ConcurrentDuplicates(t *testing.T) {
	f := setup(t)
	product := uuid.New()
	f.variants.Add(product, nil, nil, 3)
	orderID := f.createOrder(t, product, 1, strPtr("pi_storm"))

	const deliveries = 10
	outcomes := make([]service.ReconcileOutcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			outcomes[i], err = f.reconciler.Reconcile(context.Background(), service.PaymentConfirmation{PaymentID: "pi_storm"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reconciled := 0
	for _, outcome := range outcomes {
		if outcome == service.Reconciled {
			reconciled++
		} else {
			assert.Equal(t, service.AlreadyReconciled, outcome)
		}
	}
	assert.Equal(t, 1, reconciled)
	assert.Equal(t, model.Processing, f.orders.Status(orderID))
	assert.Equal(t, 1, f.notifications.CountOfType(orderID, model.NotificationProcessing))
}

func TestReconcile_AfterFulfilmentIsNoop(t *testing.T) {
	f := setup(t)
	product := uuid.New()
	f.variants.Add(product, nil, nil, 3)
	orderID := f.createOrder(t, product, 1, strPtr("pi_late"))
	f.forceStatus(orderID, model.Shipped)

	outcome, err := f.reconciler.Reconcile(context.Background(), service.PaymentConfirmation{PaymentID: "pi_late"})
	require.NoError(t, err)
	assert.Equal(t, service.AlreadyReconciled, outcome)
	assert.Equal(t, model.Shipped, f.orders.Status(orderID))
	assert.Equal(t, 0, f.notifications.CountOfType(orderID, model.NotificationProcessing))
}

func TestReconcile_UnknownPaymentIsNotAnError(t *testing.T) {
	f := setup(t)

	outcome, err := f.reconciler.Reconcile(context.Background(), service.PaymentConfirmation{PaymentID: "pi_elsewhere"})

	require.NoError(t, err)
	assert.Equal(t, service.UnknownPayment, outcome)
	require.NotNil(t, f.hook.LastEntry())
	assert.Equal(t, "no order for payment, ignoring", f.hook.LastEntry().Message)
	assert.Equal(t, logrus.InfoLevel, f.hook.LastEntry().Level)
}

func TestReconcile_CancelledOrder(t *testing.T) {
	f := setup(t)
	product := uuid.New()
	f.variants.Add(product, nil, nil, 3)
	orderID := f.createOrder(t, product, 1, strPtr("pi_cancelled"))
	require.NoError(t, f.orderService.SetOrderStatus(context.Background(), orderID, model.Cancelled, nil))

	outcome, err := f.reconciler.Reconcile(context.Background(), service.PaymentConfirmation{PaymentID: "pi_cancelled"})

	require.NoError(t, err)
	assert.Equal(t, service.PaidOrderCancelled, outcome)
	assert.Equal(t, model.Cancelled, f.orders.Status(orderID))
}

func TestReconcile_EmptyPaymentID(t *testing.T) {
	f := setup(t)
	_, err := f.reconciler.Reconcile(context.Background(), service.PaymentConfirmation{})
	assert.ErrorIs(t, err, service.ErrEmptyPaymentID)
}

func TestReconcile_WithLedger(t *testing.T) {
	f := setup(t)
	logger, _ := test.NewNullLogger()
	reconciler := service.NewPaymentReconciler(f.orders, f.orderService, f.ledger, logger)
	product := uuid.New()
	f.variants.Add(product, nil, nil, 3)
	orderID := f.createOrder(t, product, 1, strPtr("pi_ledger"))
	ctx := context.Background()

	outcome, err := reconciler.Reconcile(ctx, service.PaymentConfirmation{PaymentID: "pi_ledger"})
	require.NoError(t, err)
	assert.Equal(t, service.Reconciled, outcome)
	assert.True(t, f.ledger.seen["pi_ledger"])

	f.forceStatus(orderID, model.Pending)
	outcome, err = reconciler.Reconcile(ctx, service.PaymentConfirmation{PaymentID: "pi_ledger"})
	require.NoError(t, err)
	assert.Equal(t, service.AlreadyReconciled, outcome)
	assert.Equal(t, model.Pending, f.orders.Status(orderID), "ledger hit must short-circuit the lookup")
}

func TestReconcile_LedgerUnavailable(t *testing.T) {
	f := setup(t)
	logger, hook := test.NewNullLogger()
	f.ledger.seenErr = errors.New("redis: connection refused")
	reconciler := service.NewPaymentReconciler(f.orders, f.orderService, f.ledger, logger)
	product := uuid.New()
	f.variants.Add(product, nil, nil, 3)
	orderID := f.createOrder(t, product, 1, strPtr("pi_noredis"))

	outcome, err := reconciler.Reconcile(context.Background(), service.PaymentConfirmation{PaymentID: "pi_noredis"})

	require.NoError(t, err)
	assert.Equal(t, service.Reconciled, outcome)
	assert.Equal(t, model.Processing, f.orders.Status(orderID))
	assert.Equal(t, "payment ledger unavailable, relying on order status", hook.Entries[0].Message)
}
