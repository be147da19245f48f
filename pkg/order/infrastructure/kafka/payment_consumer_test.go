package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/order/domain/service"
)

type mockReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		m.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := m.messages[0]
	m.messages = m.messages[1:]
	return msg, nil
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockReader) Close() error { return nil }

type mockReconciler struct {
	mu        sync.Mutex
	calls     []service.PaymentConfirmation
	failTimes int
}

func (m *mockReconciler) Reconcile(_ context.Context, confirmation service.PaymentConfirmation) (service.ReconcileOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, confirmation)
	if m.failTimes > 0 {
		m.failTimes--
		return 0, errors.New("database is down")
	}
	return service.Reconciled, nil
}

func run(t *testing.T, reconciler *mockReconciler, messages ...kafka.Message) *mockReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &mockReader{messages: messages, cancel: cancel}
	logger, _ := test.NewNullLogger()
	consumer := NewPaymentConsumer(reader, reconciler, logger)
	consumer.backoff = time.Millisecond
	consumer.attempts = 4

	require.NoError(t, consumer.Run(ctx))
	return reader
}

func message(offset int64, value string) kafka.Message {
	return kafka.Message{Offset: offset, Value: []byte(value)}
}

func TestPaymentConsumer_ReconcilesAndCommits(t *testing.T) {
	reconciler := &mockReconciler{}

	reader := run(t, reconciler,
		message(1, `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":1000}}}`),
		message(2, `{"type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`),
		message(3, `not json`),
	)

	require.Len(t, reconciler.calls, 1)
	assert.Equal(t, service.PaymentConfirmation{PaymentID: "pi_1", AmountCents: 1000}, reconciler.calls[0])
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestPaymentConsumer_RetriesBeforeCommit(t *testing.T) {
	reconciler := &mockReconciler{failTimes: 2}

	reader := run(t, reconciler, message(7, `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_7"}}}`))

	assert.Len(t, reconciler.calls, 3)
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestPaymentConsumer_SkipsEventThatKeepsFailing(t *testing.T) {
	reconciler := &mockReconciler{failTimes: 100}

	reader := run(t, reconciler,
		message(8, `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_broken"}}}`),
		message(9, `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_next"}}}`),
	)

	assert.Len(t, reconciler.calls, 8, "each event gets a bounded number of attempts")
	assert.Equal(t, "pi_next", reconciler.calls[7].PaymentID)
	assert.Equal(t, []int64{8, 9}, reader.committed)
}
