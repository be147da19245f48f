package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/model"
	"storefront/pkg/order/domain/service"
	"storefront/pkg/order/infrastructure/webhook"
)

const maxWebhookBody = 1 << 20

var errBadRequest = errors.New("bad request")

type createOrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Size      *string         `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type createOrderRequest struct {
	PaymentReference *string               `json:"paymentReference"`
	Total            decimal.Decimal       `json:"total"`
	Items            []createOrderItem     `json:"items"`
	ShippingAddress  model.ShippingAddress `json:"shippingAddress"`
}

type setStatusRequest struct {
	Status       string  `json:"status"`
	TrackingCode *string `json:"trackingCode"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

// toCents rejects amounts with fractions of a cent or beyond the int64 range.
func toCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.IsInteger() {
		return 0, errors.Wrapf(errBadRequest, "amount %s has more than two decimal places", amount)
	}
	if !cents.BigInt().IsInt64() {
		return 0, errors.Wrapf(errBadRequest, "amount %s is out of range", amount)
	}
	return cents.IntPart(), nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errBadRequest, "malformed request body")
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errors.Wrap(errBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}

	req := service.CreateOrderRequest{
		PaymentReference: body.PaymentReference,
		ShippingAddress:  body.ShippingAddress,
	}
	if header := r.Header.Get(customerIDHeader); header != "" {
		customerID, err := uuid.Parse(header)
		if err != nil {
			h.writeError(w, errors.Wrap(errBadRequest, "invalid customer id"))
			return
		}
		req.CustomerID = &customerID
	}

	var err error
	if req.TotalCents, err = toCents(body.Total); err != nil {
		h.writeError(w, err)
		return
	}
	for _, item := range body.Items {
		price, err := toCents(item.Price)
		if err != nil {
			h.writeError(w, err)
			return
		}
		req.Lines = append(req.Lines, service.CartLine{
			ProductID:      item.ProductID,
			Size:           item.Size,
			Color:          item.Color,
			Quantity:       item.Quantity,
			UnitPriceCents: price,
		})
	}

	orderID, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+orderID.String())
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": orderID.String()})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(*view))
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	notifications, err := h.orders.ListNotifications(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views, err := h.orders.ListCustomerOrders(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]orderResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, toOrderResponse(view))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body setStatusRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	status, err := model.ParseOrderStatus(body.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.orders.SetOrderStatus(r.Context(), id, status, body.TrackingCode); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(*view))
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body restockRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	err = h.orders.Restock(r.Context(), id, body.Quantity)
	if errors.Is(err, model.ErrVariantNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paymentWebhook acknowledges every authentic event it understands. A non-2xx answer
// makes the gateway redeliver, so only storage failures produce one.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, errors.Wrap(errBadRequest, "failed to read body"))
		return
	}
	if err := h.verifier.Verify(r.Header.Get(webhook.SignatureHeader), body); err != nil {
		h.logger.WithError(err).Warn("rejected payment webhook")
		h.writeError(w, err)
		return
	}

	event, err := webhook.ParseEvent(body)
	if err != nil {
		h.writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	confirmation, ok := event.Confirmation()
	if !ok {
		h.logger.WithFields(logrus.Fields{"event_id": event.ID, "type": event.Type}).Debug("ignoring payment event")
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
		return
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), confirmation)
	if errors.Is(err, service.ErrEmptyPaymentID) {
		h.writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "outcome": outcome.String()})
}
