package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/pkg/order/domain/model"
	"storefront/pkg/order/domain/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

type lineResponse struct {
	ID        string `json:"id"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderResponse struct {
	ID               string                `json:"id"`
	CustomerID       *string               `json:"customerId,omitempty"`
	PaymentReference *string               `json:"paymentReference,omitempty"`
	Status           string                `json:"status"`
	Total            string                `json:"total"`
	TrackingCode     *string               `json:"trackingCode,omitempty"`
	ShippingAddress  model.ShippingAddress `json:"shippingAddress"`
	Lines            []lineResponse        `json:"lines"`
	LastNotification *notificationResponse `json:"lastNotification,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func toNotificationResponse(n model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Message:   n.Message,
		Delivered: n.Delivered,
		CreatedAt: n.CreatedAt,
	}
}

func toOrderResponse(view service.OrderView) orderResponse {
	o := view.Order
	resp := orderResponse{
		ID:               o.ID.String(),
		PaymentReference: o.PaymentReference,
		Status:           o.Status.String(),
		Total:            formatCents(o.TotalCents),
		TrackingCode:     o.TrackingCode,
		ShippingAddress:  o.ShippingAddress,
		Lines:            make([]lineResponse, 0, len(o.Lines)),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.CustomerID != nil {
		id := o.CustomerID.String()
		resp.CustomerID = &id
	}
	for _, line := range o.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:        line.ID.String(),
			VariantID: line.VariantID.String(),
			Quantity:  line.Quantity,
			UnitPrice: formatCents(line.UnitPriceCents),
		})
	}
	if view.LastNotification != nil {
		n := toNotificationResponse(*view.LastNotification)
		resp.LastNotification = &n
	}
	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("write response")
	}
}

// writeError maps domain errors onto status codes. Unknown errors are logged and hidden.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, errorResponse{Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, model.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrOptimisticLock),
		errors.Is(err, model.ErrDuplicatePayment):
		return http.StatusConflict
	case errors.Is(err, model.ErrVariantNotFound),
		errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrNegativePrice),
		errors.Is(err, model.ErrEmptyOrder),
		errors.Is(err, model.ErrUnknownStatus):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
