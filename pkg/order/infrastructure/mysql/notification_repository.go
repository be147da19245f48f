package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

type notificationRow struct {
	ID         uuid.UUID      `db:"id"`
	OrderID    uuid.UUID      `db:"order_id"`
	CustomerID uuid.NullUUID  `db:"customer_id"`
	Type       string         `db:"type"`
	Message    sql.NullString `db:"message"`
	Delivered  bool           `db:"delivered"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Type:      model.NotificationType(r.Type),
		Message:   r.Message.String,
		Delivered: r.Delivered,
		CreatedAt: r.CreatedAt,
	}
	if r.CustomerID.Valid {
		n.CustomerID = &r.CustomerID.UUID
	}
	return n
}

const selectNotification = `SELECT id, order_id, customer_id, type, message, delivered, created_at FROM notifications`

var _ model.NotificationRepository = &NotificationRepository{}

// NotificationRepository never deletes; delivery is the only update a record receives.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *NotificationRepository) Append(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, order_id, customer_id, type, message, delivered, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.OrderID.String(), nullUUID(n.CustomerID), string(n.Type), n.Message, n.Delivered, n.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert notification")
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE id = ?`, id.String())
	return errors.Wrap(err, "failed to mark notification delivered")
}

func (r *NotificationRepository) LastForOrder(ctx context.Context, orderID uuid.UUID) (*model.Notification, error) {
	var row notificationRow
	err := r.db.GetContext(ctx, &row, selectNotification+` WHERE order_id = ? ORDER BY seq DESC LIMIT 1`, orderID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select notification")
	}
	n := row.toModel()
	return &n, nil
}

func (r *NotificationRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]model.Notification, error) {
	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, selectNotification+` WHERE order_id = ? ORDER BY seq DESC`, orderID.String()); err != nil {
		return nil, errors.Wrap(err, "failed to select notifications")
	}
	notifications := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.toModel())
	}
	return notifications, nil
}
