package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/pkg/order/domain/model"
)

// Publisher is the part of *amqp.Channel the sender needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ model.NotificationSender = &NotificationSender{}

// NotificationSender hands rendered messages to the mail relay through a topic exchange.
// Routing keys have the form notification.<template>.
type NotificationSender struct {
	publisher Publisher
	exchange  string
}

func NewNotificationSender(publisher Publisher, exchange string) *NotificationSender {
	return &NotificationSender{publisher: publisher, exchange: exchange}
}

type messagePayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Template string `json:"template"`
	Body     string `json:"body"`
}

func (s *NotificationSender) Send(ctx context.Context, message model.Message) error {
	body, err := json.Marshal(messagePayload(message))
	if err != nil {
		return errors.Wrap(err, "could not marshal message")
	}
	err = s.publisher.PublishWithContext(ctx,
		s.exchange,
		"notification."+message.Template,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	return errors.Wrap(err, "could not publish message")
}
