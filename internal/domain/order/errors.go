package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Sentinel errors for lifecycle and line-item operations. All are recoverable
// at the caller; none is fatal to the process.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("line item not found")
	ErrUserNotFound  = errors.New("user not found")

	// ErrForbidden signals an ownership or role violation.
	ErrForbidden = errors.New("caller may not act on this order")

	// ErrEmptyOrder signals a creation request without line items.
	ErrEmptyOrder = errors.New("order requires at least one line item")

	// ErrOrderLocked signals a line-item mutation against an order that is
	// no longer pending or no longer visible.
	ErrOrderLocked = errors.New("order is locked for item changes")

	// ErrOrderClosed signals a lifecycle operation against an order in a
	// terminal or hidden state.
	ErrOrderClosed = errors.New("order is closed")

	ErrAlreadyConfirmed = errors.New("order already confirmed")
	ErrNotConfirmed     = errors.New("order not confirmed")
	ErrAlreadyPaid      = errors.New("order already paid")
	ErrNotPaid          = errors.New("order not paid")
	ErrAlreadyCancelled = errors.New("order already cancelled")
)

// VariantNotFoundError indicates a referenced product variant does not exist.
type VariantNotFoundError struct {
	VariantID uuid.UUID
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s not found", e.VariantID)
}

// VariantDisabledError indicates a line references a variant that is disabled
// in the catalog.
type VariantDisabledError struct {
	VariantID uuid.UUID
}

func (e *VariantDisabledError) Error() string {
	return fmt.Sprintf("variant %s is disabled", e.VariantID)
}

// InvalidQuantityError indicates a non-positive requested quantity.
type InvalidQuantityError struct {
	VariantID uuid.UUID
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for variant %s", e.Quantity, e.VariantID)
}

// InsufficientStockError indicates a variant cannot cover the requested
// quantity at validation or reservation time.
type InsufficientStockError struct {
	VariantID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("variant %s has %d in stock, %d requested",
		e.VariantID, e.Available, e.Requested)
}
