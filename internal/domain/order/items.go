package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nveliz/tienda-backend/internal/domain/audit"
	"github.com/nveliz/tienda-backend/internal/domain/catalog"
)

// ItemService is the line-item manager: it creates, updates, and removes
// line items of pending orders and keeps the order total consistent. Item
// changes never move stock; reservation happens only at confirmation.
type ItemService struct {
	orders    Repository
	inventory catalog.Inventory
	audit     audit.Recorder
	locker    *Locker
}

// NewItemService creates the line-item manager. It shares the Locker with
// the lifecycle engine so item changes cannot interleave with lifecycle
// transitions on the same order.
func NewItemService(orders Repository, inventory catalog.Inventory, rec audit.Recorder, locker *Locker) *ItemService {
	return &ItemService{
		orders:    orders,
		inventory: inventory,
		audit:     rec,
		locker:    locker,
	}
}

// AddItem appends a line item to a pending order owned by the requester.
// The variant's current price is captured on the item; stock is checked but
// not reserved. The item and the recomputed total persist as one unit.
func (s *ItemService) AddItem(ctx context.Context, orderID, variantID uuid.UUID, quantity int, requesterID uuid.UUID) (*LineItem, error) {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	if o.Status != StatusPending || !o.Visible {
		return nil, ErrOrderLocked
	}
	if quantity <= 0 {
		return nil, &InvalidQuantityError{VariantID: variantID, Quantity: quantity}
	}

	v, err := s.inventory.GetVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return nil, &VariantNotFoundError{VariantID: variantID}
		}
		return nil, errors.Wrap(err, "get variant")
	}
	if !v.Enabled {
		return nil, &VariantDisabledError{VariantID: variantID}
	}
	if v.Stock < quantity {
		return nil, &InsufficientStockError{
			VariantID: variantID,
			Requested: quantity,
			Available: v.Stock,
		}
	}

	item := LineItem{
		ID:        uuid.New(),
		OrderID:   o.ID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: v.Price,
		Enabled:   true,
	}
	o.Items = append(o.Items, item)
	o.RecomputeTotal()

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: requesterID,
		Action:  "order.item.add",
		Detail:  fmt.Sprintf("order=%s item=%s qty=%d", o.ID, item.ID, quantity),
	})
	return &item, nil
}

// UpdateItemQuantity changes a line item's quantity on a pending order. The
// stock comparison adds the item's own currently-held quantity back to the
// variant's stock, since pre-confirmation quantities are not yet reserved.
// A zero quantity removes the item entirely. The recomputed total persists
// together with the item change.
func (s *ItemService) UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, newQuantity int, requesterID uuid.UUID) error {
	unlock := s.locker.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	item, ok := o.Item(itemID)
	if !ok {
		return ErrItemNotFound
	}
	if o.OwnerID != requesterID {
		return ErrForbidden
	}
	if o.Status != StatusPending || !o.Visible {
		return ErrOrderLocked
	}
	if newQuantity < 0 {
		return &InvalidQuantityError{VariantID: item.VariantID, Quantity: newQuantity}
	}

	v, err := s.inventory.GetVariant(ctx, item.VariantID)
	if err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return &VariantNotFoundError{VariantID: item.VariantID}
		}
		return errors.Wrap(err, "get variant")
	}

	available := v.Stock + item.Quantity
	if newQuantity > available {
		return &InsufficientStockError{
			VariantID: item.VariantID,
			Requested: newQuantity,
			Available: available,
		}
	}

	if newQuantity == 0 {
		o.RemoveItem(itemID)
	} else {
		item.Quantity = newQuantity
		item.UnitPrice = v.Price
	}
	o.RecomputeTotal()

	if err := s.orders.Update(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: requesterID,
		Action:  "order.item.update",
		Detail:  fmt.Sprintf("order=%s item=%s qty=%d", o.ID, itemID, newQuantity),
	})
	return nil
}

// RemoveItem removes a line item, equivalent to a zero-quantity update.
func (s *ItemService) RemoveItem(ctx context.Context, orderID, itemID, requesterID uuid.UUID) error {
	return s.UpdateItemQuantity(ctx, orderID, itemID, 0, requesterID)
}
