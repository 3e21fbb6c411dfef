package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-backend/internal/domain/product"
	"github.com/xenking/shop-backend/internal/domain/tx"
)

// variantKey identifies one stock counter: a product plus a color.
type variantKey struct {
	ProductID string
	Color     string
}

// Reservation holds the per-variant quantities an order claims from stock.
// Quantities are aggregated across duplicate line items, so a cart listing
// the same variant twice is checked against stock once, with the summed
// amount. A Reservation is a plan: nothing is mutated until Commit.
type Reservation struct {
	quantities map[variantKey]int
}

// ValidateAvailability checks every requested item against the product
// snapshots and returns the resolved reservation. It has no side effects
// and is safe to call repeatedly with the same inputs.
func ValidateAvailability(items []ItemInput, snapshots map[string]product.Product) (Reservation, error) {
	res := Reservation{quantities: make(map[variantKey]int, len(items))}
	for _, item := range items {
		p, ok := snapshots[item.ProductID]
		if !ok || !p.Purchasable() {
			return Reservation{}, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if _, ok := p.StockFor(item.Color); !ok {
			return Reservation{}, &VariantNotFoundError{ProductID: item.ProductID, Color: item.Color}
		}
		key := variantKey{ProductID: item.ProductID, Color: item.Color}
		res.quantities[key] += item.Quantity
	}

	for key, requested := range res.quantities {
		p := snapshots[key.ProductID]
		available, _ := p.StockFor(key.Color)
		if requested > available {
			return Reservation{}, &InsufficientStockError{
				ProductID: key.ProductID,
				Color:     key.Color,
				Requested: requested,
				Available: available,
			}
		}
	}
	return res, nil
}

// ValidateDelta checks an item change on an existing order: only the
// increase over what the order already holds must be covered by stock,
// since the previous reservation is returned as part of the same update.
// The returned Reservation carries signed deltas; negative entries restore
// stock on Commit.
func ValidateDelta(newItems []ItemInput, prev []LineItem, snapshots map[string]product.Product) (Reservation, error) {
	requested := make(map[variantKey]int, len(newItems))
	for _, item := range newItems {
		p, ok := snapshots[item.ProductID]
		if !ok || !p.Purchasable() {
			return Reservation{}, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if _, ok := p.StockFor(item.Color); !ok {
			return Reservation{}, &VariantNotFoundError{ProductID: item.ProductID, Color: item.Color}
		}
		requested[variantKey{ProductID: item.ProductID, Color: item.Color}] += item.Quantity
	}

	held := make(map[variantKey]int, len(prev))
	for _, line := range prev {
		held[variantKey{ProductID: line.ProductID, Color: line.Color}] += line.Quantity
	}

	deltas := make(map[variantKey]int, len(requested)+len(held))
	for key, qty := range requested {
		deltas[key] = qty - held[key]
	}
	for key, qty := range held {
		if _, ok := requested[key]; !ok {
			deltas[key] = -qty
		}
	}

	for key, delta := range deltas {
		if delta <= 0 {
			continue
		}
		p := snapshots[key.ProductID]
		available, _ := p.StockFor(key.Color)
		if delta > available {
			return Reservation{}, &InsufficientStockError{
				ProductID: key.ProductID,
				Color:     key.Color,
				Requested: requested[key],
				Available: available + held[key],
			}
		}
	}

	return Reservation{quantities: deltas}, nil
}

// Commit applies the reservation's stock movements through the catalog
// within the given scope. Positive quantities decrement stock, negative
// ones restore it. Partial application cannot leak: every movement runs in
// the same transaction scope, so the surrounding commit or abort covers
// them all.
func (r Reservation) Commit(ctx context.Context, catalog product.Repository, scope tx.Scope) error {
	for key, qty := range r.quantities {
		switch {
		case qty > 0:
			if err := catalog.DecrementStock(ctx, scope, key.ProductID, key.Color, qty); err != nil {
				return errors.Wrapf(err, "decrement stock for %s", key.ProductID)
			}
		case qty < 0:
			if err := catalog.IncrementStock(ctx, scope, key.ProductID, key.Color, -qty); err != nil {
				return errors.Wrapf(err, "restore stock for %s", key.ProductID)
			}
		}
	}
	return nil
}

// Quantity returns the reserved amount for a product variant. Used by tests.
func (r Reservation) Quantity(productID, color string) int {
	return r.quantities[variantKey{ProductID: productID, Color: color}]
}
