package tests

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"storefront/pkg/order/domain/model"
	"storefront/pkg/order/domain/service"
)

var _ model.VariantRepository = &mockVariantRepository{}

type mockVariantRepository struct {
	mu        sync.Mutex
	variants  map[uuid.UUID]*model.Variant
	order     []uuid.UUID
	failOn    map[uuid.UUID]error
	decrement int
}

func newMockVariantRepository() *mockVariantRepository {
	return &mockVariantRepository{
		variants: make(map[uuid.UUID]*model.Variant),
		failOn:   make(map[uuid.UUID]error),
	}
}

func (m *mockVariantRepository) Add(productID uuid.UUID, size, color *string, stock int) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.variants[id] = &model.Variant{ID: id, ProductID: productID, Size: size, Color: color, Stock: stock}
	m.order = append(m.order, id)
	return id
}

func (m *mockVariantRepository) Stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variants[id].Stock
}

func (m *mockVariantRepository) ListByProduct(_ context.Context, productID uuid.UUID) ([]model.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Variant
	for _, id := range m.order {
		if v := m.variants[id]; v.ProductID == productID {
			result = append(result, *v)
		}
	}
	return result, nil
}

func (m *mockVariantRepository) Find(_ context.Context, id uuid.UUID) (*model.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, model.ErrVariantNotFound
	}
	clone := *v
	return &clone, nil
}

func (m *mockVariantRepository) DecrementStock(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrement++
	if err := m.failOn[id]; err != nil {
		return false, err
	}
	v, ok := m.variants[id]
	if !ok || v.Stock < quantity {
		return false, nil
	}
	v.Stock -= quantity
	return true, nil
}

func (m *mockVariantRepository) IncrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return model.ErrVariantNotFound
	}
	v.Stock += quantity
	return nil
}

var _ model.OrderRepository = &mockOrderRepository{}

type mockOrderRepository struct {
	mu        sync.Mutex
	store     map[uuid.UUID]*model.Order
	createErr error
	updates   int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{store: make(map[uuid.UUID]*model.Order)}
}

func cloneOrder(order *model.Order) *model.Order {
	clone := *order
	clone.Lines = append([]model.Line(nil), order.Lines...)
	return &clone
}

func (m *mockOrderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (m *mockOrderRepository) Create(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.store[order.ID]; exists {
		return errors.New("order with this ID already exists")
	}
	m.store[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) Find(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.store[id]; ok {
		return cloneOrder(order), nil
	}
	return nil, model.ErrOrderNotFound
}

func (m *mockOrderRepository) FindByPaymentReference(_ context.Context, reference string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.store {
		if order.PaymentReference != nil && *order.PaymentReference == reference {
			return cloneOrder(order), nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (m *mockOrderRepository) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Order
	for _, order := range m.store {
		if order.CustomerID != nil && *order.CustomerID == customerID {
			result = append(result, *cloneOrder(order))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockOrderRepository) Update(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.store[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	if existing.Version != order.Version-1 {
		return model.ErrOptimisticLock
	}
	m.updates++
	m.store[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

func (m *mockOrderRepository) Status(id uuid.UUID) model.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id].Status
}

var _ model.NotificationRepository = &mockNotificationRepository{}

type mockNotificationRepository struct {
	mu    sync.Mutex
	store []model.Notification
}

func (m *mockNotificationRepository) NextID() (uuid.UUID, error) { return uuid.New(), nil }

func (m *mockNotificationRepository) Append(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = append(m.store, *n)
	return nil
}

func (m *mockNotificationRepository) MarkDelivered(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.store {
		if m.store[i].ID == id {
			m.store[i].Delivered = true
			return nil
		}
	}
	return errors.New("notification not found")
}

func (m *mockNotificationRepository) Count(orderID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.store {
		if n.OrderID == orderID {
			count++
		}
	}
	return count
}

func (m *mockNotificationRepository) LastForOrder(ctx context.Context, orderID uuid.UUID) (*model.Notification, error) {
	all, _ := m.ListForOrder(ctx, orderID)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (m *mockNotificationRepository) ListForOrder(_ context.Context, orderID uuid.UUID) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Notification
	for i := len(m.store) - 1; i >= 0; i-- {
		if m.store[i].OrderID == orderID {
			result = append(result, m.store[i])
		}
	}
	return result, nil
}

func (m *mockNotificationRepository) CountOfType(orderID uuid.UUID, typ model.NotificationType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.store {
		if n.OrderID == orderID && n.Type == typ {
			count++
		}
	}
	return count
}

type mockNotificationSender struct {
	mu          sync.Mutex
	sent        []model.Message
	ShouldError bool
}

func (m *mockNotificationSender) Send(_ context.Context, message model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldError {
		return errors.New("failed to send")
	}
	m.sent = append(m.sent, message)
	return nil
}

type mockCustomerDirectory struct {
	customers map[uuid.UUID]*model.Customer
}

func (m *mockCustomerDirectory) Find(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	if c, ok := m.customers[id]; ok {
		return c, nil
	}
	return nil, errors.New("customer not found")
}

var _ service.EventDispatcher = &mockEventDispatcher{}

// mockEventDispatcher records events and, when forward is set, handles them synchronously.
type mockEventDispatcher struct {
	mu      sync.Mutex
	events  []service.Event
	forward func(ctx context.Context, event service.Event) error
}

func (m *mockEventDispatcher) Dispatch(event service.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	forward := m.forward
	m.mu.Unlock()
	if forward != nil {
		return forward(context.Background(), event)
	}
	return nil
}

func (m *mockEventDispatcher) Events() []service.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.Event(nil), m.events...)
}

func (m *mockEventDispatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

type mockPaymentLedger struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
}

func (m *mockPaymentLedger) Seen(_ context.Context, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.seen[paymentID], nil
}

func (m *mockPaymentLedger) Mark(_ context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[paymentID] = true
	return nil
}

func strPtr(s string) *string { return &s }

func serviceRequestWithoutEmail(productID uuid.UUID) service.CreateOrderRequest {
	return service.CreateOrderRequest{
		Lines:           []service.CartLine{{ProductID: productID, Quantity: 1}},
		ShippingAddress: model.ShippingAddress{Name: "Walk-in"},
	}
}

func paymentConfirmation(paymentID string) service.PaymentConfirmation {
	return service.PaymentConfirmation{PaymentID: paymentID}
}
