package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/nveliz/tienda-backend/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Create
// and Update persist the order row and its line items as one unit: when the
// repository is pool-bound it opens its own transaction, when tx-bound it
// joins the surrounding one.
type OrderRepository struct {
	db   querier
	pool *pgxpool.Pool // nil when tx-bound
}

const orderColumns = `id, owner_id, status, paid, visible, total, shipping_address, created_at, updated_at`

// Get loads an order with its line items in insertion order.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "query order")
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]

	return o, nil
}

// Create inserts the order and all its line items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.withTx(ctx, func(q querier) error {
		_, err := q.Exec(ctx,
			`INSERT INTO orders (`+orderColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			o.ID, o.OwnerID, string(o.Status), o.Paid, o.Visible, o.Total,
			o.ShippingAddress, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}
		return insertItems(ctx, q, o)
	})
}

// Update rewrites the order row and replaces its line items so the aggregate
// persists exactly as held in memory.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.withTx(ctx, func(q querier) error {
		tag, err := q.Exec(ctx,
			`UPDATE orders
			 SET status = $2, paid = $3, visible = $4, total = $5,
			     shipping_address = $6, updated_at = now()
			 WHERE id = $1`,
			o.ID, string(o.Status), o.Paid, o.Visible, o.Total, o.ShippingAddress)
		if err != nil {
			return errors.Wrap(err, "update order")
		}
		if tag.RowsAffected() == 0 {
			return order.ErrOrderNotFound
		}

		if _, err := q.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
			return errors.Wrap(err, "delete order items")
		}
		return insertItems(ctx, q, o)
	})
}

// ListByOwner returns one page of a customer's orders, newest first, with
// the total count of that customer's orders.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, page order.Page) ([]order.Order, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "query orders")
	}

	orders, err := r.collectOrders(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListByStatus returns one page of orders in the given lifecycle state.
// Sort key and direction come from the enumerated filter, never from
// free-form strings.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status, f order.Filter, page order.Page) ([]order.Order, int, error) {
	where := `status = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
	          AND ($3::timestamptz IS NULL OR created_at <= $3)`
	args := []any{string(status), f.CreatedAfter, f.CreatedBefore}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+
			` ORDER BY `+sortClause(f)+` LIMIT $4 OFFSET $5`,
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "query orders")
	}

	orders, err := r.collectOrders(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// sortClause maps the enumerated sort configuration to a SQL ORDER BY body.
func sortClause(f order.Filter) string {
	col := "created_at"
	if f.SortBy == order.SortByTotal {
		col = "total"
	}
	dir := "DESC"
	if f.SortDir == order.SortAsc {
		dir = "ASC"
	}
	return col + " " + dir
}

func (r *OrderRepository) collectOrders(ctx context.Context, rows pgx.Rows) ([]order.Order, error) {
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}

	if len(orders) == 0 {
		return orders, nil
	}

	ids := lo.Map(orders, func(o order.Order, _ int) uuid.UUID { return o.ID })
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]order.LineItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, variant_id, quantity, unit_price, enabled
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY position`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]order.LineItem, len(orderIDs))
	for rows.Next() {
		var li order.LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.VariantID, &li.Quantity, &li.UnitPrice, &li.Enabled); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items[li.OrderID] = append(items[li.OrderID], li)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate order items")
	}
	return items, nil
}

func insertItems(ctx context.Context, q querier, o *order.Order) error {
	for i, li := range o.Items {
		_, err := q.Exec(ctx,
			`INSERT INTO order_items (id, order_id, variant_id, quantity, unit_price, enabled, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			li.ID, o.ID, li.VariantID, li.Quantity, li.UnitPrice, li.Enabled, i)
		if err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}
	return nil
}

// withTx runs fn in a fresh transaction when pool-bound, or against the
// surrounding transaction when tx-bound.
func (r *OrderRepository) withTx(ctx context.Context, fn func(q querier) error) (txErr error) {
	if r.pool == nil {
		return fn(r.db)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = errors.Wrap(txErr, "rollback: "+rbErr.Error())
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.OwnerID, &status, &o.Paid, &o.Visible,
		&o.Total, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	parsed, err := order.ToStatus(status)
	if err != nil {
		return nil, err
	}
	o.Status = parsed
	return &o, nil
}
