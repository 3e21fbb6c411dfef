package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-backend/internal/domain/tx"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// DefaultColor is the stock key for products sold without color variants.
const DefaultColor = ""

// Product is a catalog item together with its per-color stock counters.
// Inside an order transaction it acts as a read-for-update snapshot: the
// stock counters are only mutated through DecrementStock within the same
// transaction scope the snapshot was fetched under.
type Product struct {
	ID        string
	Name      string
	Category  string
	Price     decimal.Decimal
	Available bool
	Deleted   bool

	// Stock maps color variant to available quantity. Products without
	// variants keep a single entry under DefaultColor.
	Stock map[string]int
}

// Purchasable reports whether the product can appear in a new order.
func (p *Product) Purchasable() bool {
	return p.Available && !p.Deleted
}

// StockFor returns the available quantity for the given color variant and
// whether that variant exists on the product.
func (p *Product) StockFor(color string) (int, bool) {
	qty, ok := p.Stock[color]
	return qty, ok
}

// Repository is the catalog accessor: read access to products and stock,
// plus stock mutation inside a transaction scope.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)

	// FetchByIDs loads products with their stock counters inside the given
	// scope using read-for-update semantics, so concurrent orders touching
	// the same rows serialize instead of losing updates.
	FetchByIDs(ctx context.Context, scope tx.Scope, ids []string) ([]Product, error)

	// DecrementStock reduces the counter for (id, color) by qty within the
	// scope. The decrement is guarded: if the stored quantity is below qty
	// the call fails with a transient conflict instead of going negative.
	DecrementStock(ctx context.Context, scope tx.Scope, id, color string, qty int) error

	// IncrementStock restores qty units of (id, color) within the scope.
	// Used when an order edit lowers a line item quantity.
	IncrementStock(ctx context.Context, scope tx.Scope, id, color string, qty int) error
}
