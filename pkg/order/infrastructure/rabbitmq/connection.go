package rabbitmq

import (
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	ExchangeType   = "topic"
	connectRetries = 5
	connectBackoff = 2 * time.Second
)

// SetupConn dials the broker, retrying while it starts up, and declares the exchange.
func SetupConn(url, exchange string, logger logrus.FieldLogger) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < connectRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("attempt", i+1).Warn("failed to connect to rabbitmq")
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "could not open channel")
	}

	err = ch.ExchangeDeclare(
		exchange,
		ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "could not declare exchange")
	}
	return conn, ch, nil
}
