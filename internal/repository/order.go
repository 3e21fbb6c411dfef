package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-backend/internal/domain/order"
	"github.com/xenking/shop-backend/internal/domain/tx"
)

const (
	insertOrderSQL = `INSERT INTO orders (
		id, user_id, items, total, discount_percent, coupon_code,
		shipping_address, mobile_phone, payment_method, status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at`

	orderColumns = `id, user_id, items, total, discount_percent, coupon_code,
		shipping_address, mobile_phone, payment_method, status,
		paid, paid_at, delivered_at, available, deleted, created_at, updated_at`
)

var (
	findOrderByIDSQL        = fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	findOrderForUpdateSQL   = fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 FOR UPDATE`, orderColumns)
	listOrdersByUserSQL     = fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1 AND deleted = FALSE ORDER BY created_at DESC`, orderColumns)
	returningOrderSQLSuffix = fmt.Sprintf(` RETURNING %s`, orderColumns)
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the shipping address are serialized to JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert persists a new order within the scope.
func (r *OrderRepository) Insert(ctx context.Context, scope tx.Scope, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshaling order items")
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshaling shipping address")
	}

	row := querier(r.pool, scope).QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, itemsJSON, o.Total, o.DiscountPercent, o.CouponCode,
		addressJSON, o.MobilePhone, o.PaymentMethod, o.Status.String(),
	)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return classify(errors.Wrapf(err, "creating order %q", o.ID))
	}
	return nil
}

// FindByID returns the order with the given ID, including soft-deleted
// records; visibility policy lives in the domain service.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	return r.findOne(ctx, nil, findOrderByIDSQL, id)
}

// FindByIDForUpdate reads the order inside the scope with a row lock.
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, scope tx.Scope, id string) (*order.Order, error) {
	return r.findOne(ctx, scope, findOrderForUpdateSQL, id)
}

// ListByUser returns all visible orders owned by the given user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for user %q", userID)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for user %q", userID)
	}
	return orders, nil
}

// UpdateFields applies a partial update and returns the updated order. The
// SET clause is built from the non-nil fields only, so untouched columns
// keep their values and updated_at always advances.
func (r *OrderRepository) UpdateFields(ctx context.Context, scope tx.Scope, id string, fields order.Fields) (*order.Order, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Items != nil {
		itemsJSON, err := json.Marshal(fields.Items)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling order items")
		}
		add("items", itemsJSON)
	}
	if fields.Total != nil {
		add("total", *fields.Total)
	}
	if fields.ShippingAddress != nil {
		addressJSON, err := json.Marshal(*fields.ShippingAddress)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling shipping address")
		}
		add("shipping_address", addressJSON)
	}
	if fields.MobilePhone != nil {
		add("mobile_phone", *fields.MobilePhone)
	}
	if fields.Status != nil {
		add("status", fields.Status.String())
	}
	if fields.Paid != nil {
		add("paid", *fields.Paid)
	}
	if fields.PaidAt != nil {
		add("paid_at", *fields.PaidAt)
	}
	if fields.DeliveredAt != nil {
		add("delivered_at", *fields.DeliveredAt)
	}
	if fields.Available != nil {
		add("available", *fields.Available)
	}
	if fields.Deleted != nil {
		add("deleted", *fields.Deleted)
	}

	sql := "UPDATE orders SET " + strings.Join(set, ", ") + " WHERE id = $1" + returningOrderSQLSuffix
	return r.findOne(ctx, scope, sql, args...)
}

func (r *OrderRepository) findOne(ctx context.Context, scope tx.Scope, sql string, args ...any) (*order.Order, error) {
	rows, err := querier(r.pool, scope).Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(errors.Wrap(err, "querying order"))
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, classify(errors.Wrap(err, "querying order"))
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		addressJSON []byte
		status      string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.Total, &o.DiscountPercent, &o.CouponCode,
		&addressJSON, &o.MobilePhone, &o.PaymentMethod, &status,
		&o.Paid, &o.PaidAt, &o.DeliveredAt, &o.Available, &o.Deleted,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, errors.Wrap(err, "unmarshaling order items")
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return order.Order{}, errors.Wrap(err, "unmarshaling shipping address")
	}
	o.Status = order.Status(status)
	return o, nil
}
