package postgres_test

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nveliz/tienda-backend/internal/storage/postgres"
)

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("tienda"),
		tcpostgres.WithUsername("tienda"),
		tcpostgres.WithPassword("tienda"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", err
	}

	return container, connStr, nil
}

// newTestPool starts the pool through the production constructor so the
// decimal codec is registered, then applies the schema.
func newTestPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func insertUser(ctx context.Context, pool *pgxpool.Pool, role string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, name, role) VALUES ($1, $2, $3)`,
		id, gofakeit.Name(), role)
	return id, err
}

func insertVariant(ctx context.Context, pool *pgxpool.Pool, price string, stock int, enabled bool) (uuid.UUID, error) {
	productID := uuid.New()
	if _, err := pool.Exec(ctx,
		`INSERT INTO products (id, name, price) VALUES ($1, $2, $3)`,
		productID, gofakeit.ProductName(), decimal.RequireFromString(price)); err != nil {
		return uuid.Nil, err
	}

	variantID := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO product_variants (id, product_id, size, stock, enabled)
		 VALUES ($1, $2, $3, $4, $5)`,
		variantID, productID, gofakeit.RandomString([]string{"S", "M", "L", "XL"}), stock, enabled)
	return variantID, err
}

func variantStock(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) (int, error) {
	var stock int
	err := pool.QueryRow(ctx,
		`SELECT stock FROM product_variants WHERE id = $1`, id).Scan(&stock)
	return stock, err
}

func productSales(ctx context.Context, pool *pgxpool.Pool, variantID uuid.UUID) (int64, error) {
	var sales int64
	err := pool.QueryRow(ctx,
		`SELECT p.total_sales FROM products p
		 JOIN product_variants v ON v.product_id = p.id
		 WHERE v.id = $1`, variantID).Scan(&sales)
	return sales, err
}

// decimalComparer makes cmp treat equal decimals with different exponents as
// equal, which is how NUMERIC values come back from the database.
var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})
