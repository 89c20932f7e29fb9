package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nveliz/tienda-backend/internal/domain/catalog"
)

var _ catalog.Inventory = (*InventoryRepository)(nil)

// InventoryRepository implements catalog.Inventory backed by PostgreSQL.
// Stock arithmetic is performed inside the database so concurrent
// reservations can never drive a counter negative.
type InventoryRepository struct {
	db querier
}

const variantSelect = `
	SELECT v.id, v.product_id, v.size, v.stock, v.enabled, p.price, v.created_at
	FROM product_variants v
	JOIN products p ON p.id = v.product_id`

// GetVariant returns a single variant with its product's unit price.
func (r *InventoryRepository) GetVariant(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	row := r.db.QueryRow(ctx, variantSelect+` WHERE v.id = $1`, id)

	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrVariantNotFound
		}
		return nil, errors.Wrap(err, "query variant")
	}
	return v, nil
}

// GetVariants returns the variants matching ids. Missing ids are simply
// absent from the result; callers decide whether that is an error.
func (r *InventoryRepository) GetVariants(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	rows, err := r.db.Query(ctx, variantSelect+` WHERE v.id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query variants")
	}
	defer rows.Close()

	var variants []catalog.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan variant")
		}
		variants = append(variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate variants")
	}
	return variants, nil
}

// AdjustStock applies delta to the stock counter as one conditional update.
// The guard rejects any delta that would take stock below zero, so the
// read-check-decrement race cannot oversell a variant.
func (r *InventoryRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE product_variants
		 SET stock = stock + $2
		 WHERE id = $1 AND stock + $2 >= 0`,
		id, delta)
	if err != nil {
		return errors.Wrap(err, "adjust stock")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the variant is missing or the guard rejected the delta.
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM product_variants WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrap(err, "check variant")
	}
	if !exists {
		return catalog.ErrVariantNotFound
	}
	return catalog.ErrStockExhausted
}

// IncrementSales adds qty to the cumulative sales counter of the product
// owning the given variant.
func (r *InventoryRepository) IncrementSales(ctx context.Context, variantID uuid.UUID, qty int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products p
		 SET total_sales = total_sales + $2
		 FROM product_variants v
		 WHERE v.id = $1 AND p.id = v.product_id`,
		variantID, qty)
	if err != nil {
		return errors.Wrap(err, "increment sales")
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVariantNotFound
	}
	return nil
}

func scanVariant(row pgx.Row) (*catalog.Variant, error) {
	var v catalog.Variant
	if err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Stock, &v.Enabled, &v.Price, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
