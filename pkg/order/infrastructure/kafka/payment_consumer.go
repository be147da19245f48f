package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/service"
	"storefront/pkg/order/infrastructure/webhook"
)

// Reader is the subset of *kafka.Reader used by the consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

const defaultAttempts = 5

// PaymentConsumer reconciles payment events from a topic. An offset is committed
// once the event has been reconciled or its attempts are exhausted, so delivery is at-least-once.
type PaymentConsumer struct {
	reader     Reader
	reconciler service.PaymentReconciler
	logger     logrus.FieldLogger
	backoff    time.Duration
	attempts   int
}

func NewPaymentConsumer(reader Reader, reconciler service.PaymentReconciler, logger logrus.FieldLogger) *PaymentConsumer {
	return &PaymentConsumer{reader: reader, reconciler: reconciler, logger: logger, backoff: time.Second, attempts: defaultAttempts}
}

// Run blocks until ctx is cancelled.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	c.logger.Info("payment consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("payment consumer stopped")
				return nil
			}
			return errors.Wrap(err, "failed to fetch payment event")
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to commit payment event")
		}
	}
}

// handle retries reconciliation with a growing backoff. Malformed events and events that keep
// failing are logged and skipped, so one bad event cannot stall its partition.
func (c *PaymentConsumer) handle(ctx context.Context, msg kafka.Message) error {
	log := c.logger.WithFields(logrus.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	event, err := webhook.ParseEvent(msg.Value)
	if err != nil {
		log.WithError(err).Error("skipping malformed payment event")
		return nil
	}
	confirmation, ok := event.Confirmation()
	if !ok {
		log.WithField("type", event.Type).Debug("ignoring payment event")
		return nil
	}
	if confirmation.PaymentID == "" {
		log.Error("skipping payment event without payment id")
		return nil
	}

	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		outcome, err := c.reconciler.Reconcile(ctx, confirmation)
		if err == nil {
			log.WithFields(logrus.Fields{
				"payment_id": confirmation.PaymentID,
				"outcome":    outcome.String(),
			}).Debug("payment event handled")
			return nil
		}
		log := log.WithError(err).WithFields(logrus.Fields{"payment_id": confirmation.PaymentID, "attempt": attempt})
		if attempt >= c.attempts {
			log.Error("giving up on payment event")
			return nil
		}
		log.Warn("failed to reconcile payment, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
