package webhook

import (
	"encoding/json"

	"github.com/pkg/errors"

	"storefront/pkg/order/domain/service"
)

const PaymentSucceeded = "payment_intent.succeeded"

// Event is the gateway event envelope. The same body is published on the payment topic.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"object"`
	} `json:"data"`
}

func ParseEvent(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, errors.Wrap(err, "malformed payment event")
	}
	return event, nil
}

// Confirmation reports false for event types that do not confirm a payment.
func (e Event) Confirmation() (service.PaymentConfirmation, bool) {
	if e.Type != PaymentSucceeded {
		return service.PaymentConfirmation{}, false
	}
	return service.PaymentConfirmation{PaymentID: e.Data.Object.ID, AmountCents: e.Data.Object.Amount}, true
}
