package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

type orderRow struct {
	ID               uuid.UUID      `db:"id"`
	CustomerID       uuid.NullUUID  `db:"customer_id"`
	PaymentReference sql.NullString `db:"payment_reference"`
	TotalCents       int64          `db:"total_cents"`
	ShippingAddress  []byte         `db:"shipping_address"`
	TrackingCode     sql.NullString `db:"tracking_code"`
	Status           string         `db:"status"`
	Version          int            `db:"version"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

type lineRow struct {
	ID             uuid.UUID `db:"id"`
	OrderID        uuid.UUID `db:"order_id"`
	VariantID      uuid.UUID `db:"variant_id"`
	Quantity       int       `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
}

func (r orderRow) toModel() (model.Order, error) {
	status, err := model.ParseOrderStatus(r.Status)
	if err != nil {
		return model.Order{}, errors.Wrapf(err, "order %s", r.ID)
	}
	order := model.Order{
		ID:         r.ID,
		TotalCents: r.TotalCents,
		Status:     status,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.CustomerID.Valid {
		order.CustomerID = &r.CustomerID.UUID
	}
	if r.PaymentReference.Valid {
		order.PaymentReference = &r.PaymentReference.String
	}
	if r.TrackingCode.Valid {
		order.TrackingCode = &r.TrackingCode.String
	}
	if err := json.Unmarshal(r.ShippingAddress, &order.ShippingAddress); err != nil {
		return model.Order{}, errors.Wrapf(err, "invalid shipping address of order %s", r.ID)
	}
	return order, nil
}

const selectOrder = `SELECT id, customer_id, payment_reference, total_cents, shipping_address, tracking_code,
       status, version, created_at, updated_at
FROM orders`

var _ model.OrderRepository = &OrderRepository{}

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) (err error) {
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "failed to encode shipping address")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO orders
    (id, customer_id, payment_reference, total_cents, shipping_address, tracking_code, status, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID.String(),
		nullUUID(order.CustomerID),
		nullString(order.PaymentReference),
		order.TotalCents,
		address,
		nullString(order.TrackingCode),
		order.Status.String(),
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return model.ErrDuplicatePayment
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	for i, line := range order.Lines {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_lines (id, order_id, position, variant_id, quantity, unit_price_cents) VALUES (?, ?, ?, ?, ?, ?)`,
			line.ID.String(), order.ID.String(), i, line.VariantID.String(), line.Quantity, line.UnitPriceCents,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert order line %d", i)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit order")
	}
	return nil
}

func (r *OrderRepository) Find(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.findOne(ctx, selectOrder+` WHERE id = ?`, id.String())
}

func (r *OrderRepository) FindByPaymentReference(ctx context.Context, reference string) (*model.Order, error) {
	return r.findOne(ctx, selectOrder+` WHERE payment_reference = ?`, reference)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Order, error) {
	var rows []orderRow
	err := r.db.SelectContext(ctx, &rows, selectOrder+` WHERE customer_id = ? ORDER BY created_at DESC`, customerID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to select orders")
	}
	return r.withLines(ctx, rows)
}

func (r *OrderRepository) Update(ctx context.Context, order *model.Order) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, tracking_code = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		order.Status.String(),
		nullString(order.TrackingCode),
		order.Version,
		order.UpdatedAt,
		order.ID.String(),
		order.Version-1,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)`, order.ID.String()); err != nil {
		return errors.Wrap(err, "failed to check order")
	}
	if !exists {
		return model.ErrOrderNotFound
	}
	return model.ErrOptimisticLock
}

func (r *OrderRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select order")
	}
	orders, err := r.withLines(ctx, []orderRow{row})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) withLines(ctx context.Context, rows []orderRow) ([]model.Order, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.String())
	}
	query, args, err := sqlx.In(
		`SELECT id, order_id, variant_id, quantity, unit_price_cents FROM order_lines WHERE order_id IN (?) ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build order lines query")
	}
	var lines []lineRow
	if err := r.db.SelectContext(ctx, &lines, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to select order lines")
	}

	byOrder := make(map[uuid.UUID][]model.Line, len(rows))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], model.Line{
			ID:             l.ID,
			VariantID:      l.VariantID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}

	orders := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.toModel()
		if err != nil {
			return nil, err
		}
		order.Lines = byOrder[row.ID]
		orders = append(orders, order)
	}
	return orders, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
