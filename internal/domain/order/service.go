package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nveliz/tienda-backend/internal/domain/audit"
	"github.com/nveliz/tienda-backend/internal/domain/catalog"
	"github.com/nveliz/tienda-backend/internal/domain/user"
)

// CreateLine is one requested line in a creation request.
type CreateLine struct {
	VariantID uuid.UUID
	Quantity  int
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	OwnerID         uuid.UUID
	Lines           []CreateLine
	ShippingAddress string
}

// Service owns the order lifecycle state machine and orchestrates stock
// reservation and release through the inventory accessor.
//
// Reservation is deferred: creating an order holds no stock. Confirmation
// validates every line against fresh variant state and then applies all
// decrements together with the state change in one transaction, so a failed
// confirmation never leaves stock partially reserved. Cancellation of a
// confirmed order restores every line's stock, making the net effect of
// create, confirm, cancel zero.
type Service struct {
	orders    Repository
	inventory catalog.Inventory
	users     user.Repository
	tx        TxRunner
	audit     audit.Recorder
	locker    *Locker
}

// NewService creates the lifecycle engine. The locker is shared with the
// line-item manager so all mutations of one order serialize.
func NewService(
	orders Repository,
	inventory catalog.Inventory,
	users user.Repository,
	tx TxRunner,
	rec audit.Recorder,
	locker *Locker,
) *Service {
	return &Service{
		orders:    orders,
		inventory: inventory,
		users:     users,
		tx:        tx,
		audit:     rec,
		locker:    locker,
	}
}

// Create validates every requested line against current catalog state and
// allocates a pending order. No stock is reserved; unit prices are captured
// at this moment. The order is not created if any line fails validation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if _, err := s.users.Get(ctx, req.OwnerID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "get owner")
	}

	if len(req.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]uuid.UUID, len(req.Lines))
	for i, line := range req.Lines {
		ids[i] = line.VariantID
	}

	fetched, err := s.inventory.GetVariants(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}
	variants := make(map[uuid.UUID]catalog.Variant, len(fetched))
	for _, v := range fetched {
		variants[v.ID] = v
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.New(),
		OwnerID:         req.OwnerID,
		Status:          StatusPending,
		Paid:            false,
		Visible:         true,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, line := range req.Lines {
		v, ok := variants[line.VariantID]
		if !ok {
			return nil, &VariantNotFoundError{VariantID: line.VariantID}
		}
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{VariantID: line.VariantID, Quantity: line.Quantity}
		}
		if !v.Enabled {
			return nil, &VariantDisabledError{VariantID: line.VariantID}
		}
		if v.Stock < line.Quantity {
			return nil, &InsufficientStockError{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: v.Stock,
			}
		}

		o.Items = append(o.Items, LineItem{
			ID:        uuid.New(),
			OrderID:   o.ID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: v.Price,
			Enabled:   true,
		})
	}
	o.RecomputeTotal()

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.record(ctx, req.OwnerID, "order.create",
		fmt.Sprintf("order=%s items=%d total=%s", o.ID, len(o.Items), o.Total))

	return o, nil
}

// Confirm reserves stock for every line item and moves the order to
// StatusConfirmed. Lines are validated in insertion order against fresh
// variant state; the decrements and the state change commit in a single
// transaction, so the first failing line aborts the whole confirmation
// with no stock effect.
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusConfirmed {
		return nil, ErrAlreadyConfirmed
	}
	if o.Closed() || !o.Visible {
		return nil, ErrOrderClosed
	}
	if o.Paid {
		return nil, ErrAlreadyPaid
	}

	err = s.tx.WithinTx(ctx, func(orders Repository, inv catalog.Inventory) error {
		available := make(map[uuid.UUID]int, len(o.Items))
		for _, li := range o.Items {
			v, err := inv.GetVariant(ctx, li.VariantID)
			if err != nil {
				if errors.Is(err, catalog.ErrVariantNotFound) {
					return &VariantNotFoundError{VariantID: li.VariantID}
				}
				return errors.Wrap(err, "get variant")
			}
			if !v.Enabled {
				return &VariantDisabledError{VariantID: li.VariantID}
			}
			if v.Stock < li.Quantity {
				return &InsufficientStockError{
					VariantID: li.VariantID,
					Requested: li.Quantity,
					Available: v.Stock,
				}
			}
			available[li.VariantID] = v.Stock
		}

		for _, li := range o.Items {
			if err := inv.AdjustStock(ctx, li.VariantID, -li.Quantity); err != nil {
				if errors.Is(err, catalog.ErrStockExhausted) {
					// Lost a race with a concurrent reservation since the
					// validation pass; the transaction rolls back whole.
					return &InsufficientStockError{
						VariantID: li.VariantID,
						Requested: li.Quantity,
						Available: available[li.VariantID],
					}
				}
				return errors.Wrap(err, "reserve stock")
			}
		}

		o.Status = StatusConfirmed
		return orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, o.OwnerID, "order.confirm", fmt.Sprintf("order=%s", o.ID))
	return o, nil
}

// Pay marks a confirmed order as paid. Paid orders can no longer be
// cancelled; the flag is settable exactly once.
func (s *Service) Pay(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Closed() || !o.Visible {
		return nil, ErrOrderClosed
	}
	if o.Status != StatusConfirmed {
		return nil, ErrNotConfirmed
	}
	if o.Paid {
		return nil, ErrAlreadyPaid
	}

	o.Paid = true
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.record(ctx, o.OwnerID, "order.pay", fmt.Sprintf("order=%s total=%s", o.ID, o.Total))
	return o, nil
}

// Finalize closes a confirmed and paid order, redeeming its reservation:
// each enabled line increments the owning product's cumulative sales counter
// by its quantity, in the same transaction as the state change.
func (s *Service) Finalize(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Closed() || !o.Visible {
		return nil, ErrOrderClosed
	}
	if o.Status != StatusConfirmed {
		return nil, ErrNotConfirmed
	}
	if !o.Paid {
		return nil, ErrNotPaid
	}

	err = s.tx.WithinTx(ctx, func(orders Repository, inv catalog.Inventory) error {
		for _, li := range o.Items {
			if !li.Enabled {
				continue
			}
			if err := inv.IncrementSales(ctx, li.VariantID, li.Quantity); err != nil {
				return errors.Wrap(err, "increment sales")
			}
		}

		o.Status = StatusFinalized
		return orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, o.OwnerID, "order.finalize", fmt.Sprintf("order=%s", o.ID))
	return o, nil
}

// Cancel cancels an order on behalf of its owner or an administrator. When
// the order had reached StatusConfirmed its reservation is released: every
// line's stock is restored in the same transaction as the state change.
// The order and its items are then hidden; visibility is a one-way
// transition and is never re-enabled.
func (s *Service) Cancel(ctx context.Context, orderID, callerID uuid.UUID, role user.Role) (*Order, error) {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != callerID && role != user.RoleAdmin {
		return nil, ErrForbidden
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if o.Status == StatusFinalized || !o.Visible || o.Paid {
		return nil, ErrOrderClosed
	}

	reserved := o.Status == StatusConfirmed

	err = s.tx.WithinTx(ctx, func(orders Repository, inv catalog.Inventory) error {
		if reserved {
			for _, li := range o.Items {
				if err := inv.AdjustStock(ctx, li.VariantID, li.Quantity); err != nil {
					return errors.Wrap(err, "release stock")
				}
			}
		}

		o.Status = StatusCancelled
		for i := range o.Items {
			o.Items[i].Enabled = false
		}
		o.Visible = false
		return orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, callerID, "order.cancel",
		fmt.Sprintf("order=%s released=%t", o.ID, reserved))
	return o, nil
}

// UpdateShipping mutates the shipping address, a non-lifecycle field. The
// ownership check happens under the order lock so it cannot race with a
// concurrent mutation of the same order.
func (s *Service) UpdateShipping(ctx context.Context, orderID uuid.UUID, address string, callerID uuid.UUID, role user.Role) (*Order, error) {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != callerID && role != user.RoleAdmin {
		return nil, ErrForbidden
	}

	o.ShippingAddress = address
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Get returns the order with its line items. Hidden orders are returned as
// well; customer-facing visibility is enforced at the API layer, which knows
// the caller's role.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListByOwner returns one page of a customer's orders, newest first, plus
// the total count.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, page Page) ([]Order, int, error) {
	page.Normalize()
	return s.orders.ListByOwner(ctx, ownerID, page)
}

// ListByStatus returns one page of orders in the given lifecycle state,
// filtered and sorted per f.
func (s *Service) ListByStatus(ctx context.Context, status Status, f Filter, page Page) ([]Order, int, error) {
	if _, err := ToStatus(string(status)); err != nil {
		return nil, 0, err
	}
	if err := f.Normalize(); err != nil {
		return nil, 0, err
	}
	page.Normalize()
	return s.orders.ListByStatus(ctx, status, f, page)
}

// record writes an audit entry. The recorder is fire-and-forget: it never
// blocks and its failures never surface to the primary operation.
func (s *Service) record(ctx context.Context, actorID uuid.UUID, action, detail string) {
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
	})
}
