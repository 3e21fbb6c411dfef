package order

import "fmt"

// Sentinel errors for order operations. All of these are terminal: they
// describe a problem with the request itself and are never retried.
var (
	ErrEmptyItems = fmt.Errorf("items required")
	ErrNotFound   = fmt.Errorf("order not found")
	ErrForbidden  = fmt.Errorf("order does not belong to the requesting user")
	// ErrTransactionConflict is surfaced when the creation transaction kept
	// conflicting with concurrent writers past the retry bound.
	ErrTransactionConflict = fmt.Errorf("order transaction kept conflicting, try again")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist or is
// no longer purchasable.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// VariantNotFoundError indicates the requested color does not exist on
// the product.
type VariantNotFoundError struct {
	ProductID string
	Color     string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("product %s has no %q variant", e.ProductID, e.Color)
}

// InsufficientStockError indicates the requested quantity exceeds the
// available stock for a product variant.
type InsufficientStockError struct {
	ProductID string
	Color     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Color != "" {
		return fmt.Sprintf("insufficient stock for product %s (%s): requested %d, available %d",
			e.ProductID, e.Color, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidOrderStateError indicates an operation that is only allowed while
// the order is processing was attempted in another state.
type InvalidOrderStateError struct {
	Status Status
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order cannot be updated because it is %s", e.Status)
}

// InvalidTransitionError indicates a status change the state machine does
// not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order status cannot change from %s to %s", e.From, e.To)
}

// ValidationError indicates an internal invariant violation, such as a line
// item referencing a product absent from the fetched snapshot set.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation failed: %s", e.Reason)
}
