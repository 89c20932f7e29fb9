// Package order implements the order lifecycle core: the aggregate and its
// line items, the lifecycle state machine with deferred stock reservation,
// and the line-item manager.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nveliz/tienda-backend/internal/domain/catalog"
)

// Status is the lifecycle state of an order. The zero value is invalid:
// constructors assign StatusPending explicitly and ToStatus rejects anything
// outside the known set.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusFinalized Status = "finalized"
)

var validStatuses = map[Status]struct{}{
	StatusPending:   {},
	StatusConfirmed: {},
	StatusCancelled: {},
	StatusFinalized: {},
}

// ToStatus parses a status string.
func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}
	return "", errors.Errorf("invalid order status %q", s)
}

// Statuses returns all valid lifecycle states.
func Statuses() []Status {
	return lo.Keys(validStatuses)
}

// Order is the aggregate root. Line items are owned exclusively by the order;
// Total is derived and recomputed whenever enabled items change.
type Order struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Items           []LineItem
	Total           decimal.Decimal
	Status          Status
	Paid            bool
	Visible         bool
	ShippingAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LineItem is one entry in an order. UnitPrice is captured from the variant
// when the item is added or its quantity updated; it is never revalued when
// unrelated items change.
type LineItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	VariantID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Enabled   bool
}

// Subtotal returns quantity times the captured unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// RecomputeTotal rebuilds Total from the enabled line items.
func (o *Order) RecomputeTotal() {
	total := decimal.Zero
	for _, li := range o.Items {
		if li.Enabled {
			total = total.Add(li.Subtotal())
		}
	}
	o.Total = total
}

// Item returns a pointer to the line item with the given id, if present.
func (o *Order) Item(itemID uuid.UUID) (*LineItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// RemoveItem drops the line item with the given id, preserving the order of
// the remaining items. It reports whether an item was removed.
func (o *Order) RemoveItem(itemID uuid.UUID) bool {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Closed reports whether the order is in a terminal lifecycle state.
// No line item of a closed order may be created, modified, or removed.
func (o *Order) Closed() bool {
	return o.Status == StatusCancelled || o.Status == StatusFinalized
}

// Repository defines persistence for the order aggregate. Create and Update
// persist the order row together with its line items as one unit.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error

	ListByOwner(ctx context.Context, ownerID uuid.UUID, page Page) ([]Order, int, error)
	ListByStatus(ctx context.Context, status Status, f Filter, page Page) ([]Order, int, error)
}

// TxRunner executes fn with repositories bound to a single transaction, so a
// lifecycle transition and its stock adjustments commit or roll back together.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(orders Repository, inv catalog.Inventory) error) error
}
