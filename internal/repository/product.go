package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-backend/internal/domain/product"
	"github.com/xenking/shop-backend/internal/domain/tx"
)

const (
	listProductsSQL = `SELECT id, name, category, price, available, deleted
		FROM products WHERE deleted = FALSE ORDER BY id`

	getProductByIDSQL = `SELECT id, name, category, price, available, deleted
		FROM products WHERE id = $1`

	getProductsForUpdateSQL = `SELECT id, name, category, price, available, deleted
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	getStockSQL = `SELECT product_id, color, quantity
		FROM product_stock WHERE product_id = ANY($1) ORDER BY product_id, color`

	getStockForUpdateSQL = `SELECT product_id, color, quantity
		FROM product_stock WHERE product_id = ANY($1) ORDER BY product_id, color FOR UPDATE`

	decrementStockSQL = `UPDATE product_stock SET quantity = quantity - $3
		WHERE product_id = $1 AND color = $2 AND quantity >= $3`

	incrementStockSQL = `UPDATE product_stock SET quantity = quantity + $3
		WHERE product_id = $1 AND color = $2`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements the catalog accessor backed by PostgreSQL.
// Products and their per-color stock counters live in separate tables; both
// are locked FOR UPDATE inside an order transaction. Rows are locked in a
// stable order to keep concurrent orders from deadlocking on each other.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all non-deleted products with their stock counters.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	if err := r.attachStock(ctx, nil, products, getStockSQL); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product with its stock counters.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	products := []product.Product{p}
	if err := r.attachStock(ctx, nil, products, getStockSQL); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// FetchByIDs loads products and their stock rows FOR UPDATE inside the
// given scope. Missing IDs are simply absent from the result; the caller's
// validation turns them into request-level errors.
func (r *ProductRepository) FetchByIDs(ctx context.Context, scope tx.Scope, ids []string) ([]product.Product, error) {
	q := querier(r.pool, scope)

	rows, err := q.Query(ctx, getProductsForUpdateSQL, ids)
	if err != nil {
		return nil, classify(errors.Wrap(err, "fetching products for update"))
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, classify(errors.Wrap(err, "fetching products for update"))
	}
	if err := r.attachStock(ctx, scope, products, getStockForUpdateSQL); err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock reduces a stock counter within the scope. The statement is
// guarded by quantity >= $3: after a FOR UPDATE validation the guard cannot
// fail, so a zero row count means a concurrent writer got there first and
// the error is classified transient for the retry loop.
func (r *ProductRepository) DecrementStock(ctx context.Context, scope tx.Scope, id, color string, qty int) error {
	tag, err := querier(r.pool, scope).Exec(ctx, decrementStockSQL, id, color, qty)
	if err != nil {
		return classify(errors.Wrapf(err, "decrementing stock for %q", id))
	}
	if tag.RowsAffected() == 0 {
		return &conflictError{err: errors.Errorf("stock decrement lost race for product %q (%s)", id, color)}
	}
	return nil
}

// IncrementStock restores a stock counter within the scope. The row is
// created if the variant was removed since the order was placed.
func (r *ProductRepository) IncrementStock(ctx context.Context, scope tx.Scope, id, color string, qty int) error {
	const upsert = `INSERT INTO product_stock (product_id, color, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, color) DO UPDATE SET quantity = product_stock.quantity + EXCLUDED.quantity`
	_, err := querier(r.pool, scope).Exec(ctx, upsert, id, color, qty)
	if err != nil {
		return classify(errors.Wrapf(err, "restoring stock for %q", id))
	}
	return nil
}

// attachStock loads stock rows for the given products and fills their Stock
// maps in place.
func (r *ProductRepository) attachStock(ctx context.Context, scope tx.Scope, products []product.Product, sql string) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Stock = make(map[string]int)
	}

	rows, err := querier(r.pool, scope).Query(ctx, sql, ids)
	if err != nil {
		return classify(errors.Wrap(err, "loading stock"))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			color     string
			qty       int
		)
		if err := rows.Scan(&productID, &color, &qty); err != nil {
			return errors.Wrap(err, "scanning stock row")
		}
		if i, ok := index[productID]; ok {
			products[i].Stock[color] = qty
		}
	}
	return classify(errors.Wrap(rows.Err(), "loading stock"))
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &p.Available, &p.Deleted)
	p.Price = price
	return p, err
}
