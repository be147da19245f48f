package mysql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

var ErrCustomerNotFound = errors.New("customer not found")

// CustomerDirectory reads the users table maintained by the identity service.
type CustomerDirectory struct {
	db *sqlx.DB
}

func NewCustomerDirectory(db *sqlx.DB) *CustomerDirectory {
	return &CustomerDirectory{db: db}
}

func (d *CustomerDirectory) Find(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var row struct {
		Email string         `db:"email"`
		Name  sql.NullString `db:"name"`
	}
	err := d.db.GetContext(ctx, &row, `SELECT email, name FROM users WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select customer")
	}
	return &model.Customer{ID: id, Email: row.Email, Name: row.Name.String}, nil
}
