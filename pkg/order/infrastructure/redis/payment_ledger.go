package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"storefront/pkg/order/domain/service"
)

const paymentKeyPrefix = "storefront:payment:"

var _ service.PaymentLedger = &PaymentLedger{}

// PaymentLedger remembers reconciled payment ids for ttl. It is an optimisation
// in front of the order status guard, losing an entry only costs a database read.
type PaymentLedger struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewPaymentLedger(client redis.Cmdable, ttl time.Duration) *PaymentLedger {
	return &PaymentLedger{client: client, ttl: ttl}
}

func (l *PaymentLedger) Seen(ctx context.Context, paymentID string) (bool, error) {
	n, err := l.client.Exists(ctx, paymentKeyPrefix+paymentID).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to check payment ledger")
	}
	return n > 0, nil
}

func (l *PaymentLedger) Mark(ctx context.Context, paymentID string) error {
	err := l.client.SetNX(ctx, paymentKeyPrefix+paymentID, 1, l.ttl).Err()
	return errors.Wrap(err, "failed to mark payment")
}

// Ping is used by the health check.
func (l *PaymentLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
