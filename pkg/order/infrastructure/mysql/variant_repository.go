package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

type variantRow struct {
	ID        uuid.UUID      `db:"id"`
	ProductID uuid.UUID      `db:"product_id"`
	Size      sql.NullString `db:"size"`
	Color     sql.NullString `db:"color"`
	Stock     int            `db:"stock"`
	Images    []byte         `db:"images"`
}

func (r variantRow) toModel() (model.Variant, error) {
	v := model.Variant{ID: r.ID, ProductID: r.ProductID, Stock: r.Stock}
	if r.Size.Valid {
		v.Size = &r.Size.String
	}
	if r.Color.Valid {
		v.Color = &r.Color.String
	}
	if len(r.Images) > 0 {
		if err := json.Unmarshal(r.Images, &v.Images); err != nil {
			return v, errors.Wrapf(err, "invalid images of variant %s", r.ID)
		}
	}
	return v, nil
}

const selectVariant = `SELECT id, product_id, size, color, stock, images FROM product_variants`

var _ model.VariantRepository = &VariantRepository{}

type VariantRepository struct {
	db *sqlx.DB
}

func NewVariantRepository(db *sqlx.DB) *VariantRepository {
	return &VariantRepository{db: db}
}

func (r *VariantRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Variant, error) {
	var rows []variantRow
	err := r.db.SelectContext(ctx, &rows, selectVariant+` WHERE product_id = ? ORDER BY created_at, id`, productID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to select variants")
	}
	variants := make([]model.Variant, 0, len(rows))
	for _, row := range rows {
		v, err := row.toModel()
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (r *VariantRepository) Find(ctx context.Context, id uuid.UUID) (*model.Variant, error) {
	var row variantRow
	err := r.db.GetContext(ctx, &row, selectVariant+` WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrVariantNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select variant")
	}
	v, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DecrementStock relies on the conditional UPDATE being atomic for the row.
func (r *VariantRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE product_variants SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		quantity, id.String(), quantity,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to decrement stock")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to decrement stock")
	}
	return affected == 1, nil
}

func (r *VariantRepository) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE product_variants SET stock = stock + ? WHERE id = ?`, quantity, id.String())
	if err != nil {
		return errors.Wrap(err, "failed to increment stock")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to increment stock")
	}
	if affected == 0 {
		return model.ErrVariantNotFound
	}
	return nil
}
