// Package catalog exposes the slice of the product catalog the order core
// consumes: sized variants with a stock counter and enabled flag, and the
// owning product's price and cumulative sales counter. Catalog management
// (categories, images, search) is owned by the catalog subsystem.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by Inventory implementations.
var (
	ErrVariantNotFound = errors.New("variant not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrStockExhausted is returned by AdjustStock when a negative delta
	// would take the stock counter below zero.
	ErrStockExhausted = errors.New("stock exhausted")
)

// Product is the catalog entry a variant belongs to. Price is the unit price
// shared by all of its variants; TotalSales accumulates finalized quantities.
type Product struct {
	ID         uuid.UUID
	Name       string
	Price      decimal.Decimal
	Enabled    bool
	TotalSales int64
	CreatedAt  time.Time
}

// Variant is a sized instance of a product: the actual unit of stock.
// Price is denormalized from the owning product so callers holding a variant
// can price a line without a second lookup.
type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Size      string
	Stock     int
	Enabled   bool
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Inventory is the accessor the order core uses to read and adjust variant
// stock. Reads must reflect committed state at call time; the lifecycle
// engine re-checks stock and enabled flags at the moment of reservation.
type Inventory interface {
	GetVariant(ctx context.Context, id uuid.UUID) (*Variant, error)
	GetVariants(ctx context.Context, ids []uuid.UUID) ([]Variant, error)

	// AdjustStock atomically applies delta to a variant's stock counter.
	// A negative delta reserves stock, a positive delta releases it.
	// Returns ErrStockExhausted when the resulting stock would be negative.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error

	// IncrementSales adds qty to the cumulative sales counter of the
	// product that owns the given variant.
	IncrementSales(ctx context.Context, variantID uuid.UUID, qty int) error
}
