package transport

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/service"
)

const customerIDHeader = "X-Customer-ID"

type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

type Handler struct {
	orders     service.OrderService
	reconciler service.PaymentReconciler
	verifier   SignatureVerifier
	logger     logrus.FieldLogger
}

func NewHandler(orders service.OrderService, reconciler service.PaymentReconciler, verifier SignatureVerifier, logger logrus.FieldLogger) *Handler {
	return &Handler{orders: orders, reconciler: reconciler, verifier: verifier, logger: logger}
}

func Router(h *Handler) http.Handler {
	r := mux.NewRouter()
	s := r.PathPrefix("/api/v1").Subrouter()

	s.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	s.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	s.HandleFunc("/orders/{id}/notifications", h.listNotifications).Methods(http.MethodGet)
	s.HandleFunc("/customers/{id}/orders", h.listCustomerOrders).Methods(http.MethodGet)

	admin := s.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders/{id}/status", h.setOrderStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/variants/{id}/restock", h.restock).Methods(http.MethodPost)

	s.HandleFunc("/webhooks/payments", h.paymentWebhook).Methods(http.MethodPost)

	return h.logMiddleware(r)
}

func (h *Handler) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
		}).Info("got a new request")
		next.ServeHTTP(w, r)
	})
}
