package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nveliz/tienda-backend/internal/domain/catalog"
	"github.com/nveliz/tienda-backend/internal/domain/order"
)

var _ order.TxRunner = (*Store)(nil)

// Store bundles the repositories over one pool and runs multi-repository
// units of work in a single transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Orders returns a pool-bound order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{db: s.pool, pool: s.pool} }

// Inventory returns a pool-bound inventory accessor.
func (s *Store) Inventory() *InventoryRepository { return &InventoryRepository{db: s.pool} }

// Users returns a pool-bound user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{db: s.pool} }

// Audit returns a pool-bound audit sink.
func (s *Store) Audit() *AuditRepository { return &AuditRepository{db: s.pool} }

// WithinTx runs fn with repositories bound to a single transaction. The
// transaction commits only if fn returns nil; any error rolls back every
// mutation fn performed, stock adjustments included.
func (s *Store) WithinTx(ctx context.Context, fn func(orders order.Repository, inv catalog.Inventory) error) (txErr error) {
	tx, err := s.pool.Begin(ctx)
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

	orders := &OrderRepository{db: tx}
	inv := &InventoryRepository{db: tx}
	if err := fn(orders, inv); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
