package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shop-backend/internal/domain/tx"
)

// Status represents the fulfillment state of an order.
type Status string

const (
	// StatusProcessing indicates the order has been placed but not yet paid.
	StatusProcessing Status = "processing"
	// StatusPaid indicates payment has been confirmed.
	StatusPaid Status = "paid"
	// StatusShipped indicates the order has left the warehouse.
	StatusShipped Status = "shipped"
	// StatusDelivered indicates the order reached the customer.
	StatusDelivered Status = "delivered"
	// StatusCancelled indicates the order was cancelled.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// transitions maps each status to the statuses it may move to.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether an order in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Address is the shipping destination of an order.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
}

// LineItem is one entry in an order: a product, an optional color variant,
// the purchased quantity, and the unit price locked in at purchase time.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemInput is a requested line item before pricing: what the customer asked
// for, without a resolved unit price.
type ItemInput struct {
	ProductID string
	Color     string
	Quantity  int
}

// Order is a placed customer order. Total is immutable once set except
// through the client item-update path while the order is still processing.
type Order struct {
	ID              string
	UserID          string
	Items           []LineItem
	Total           decimal.Decimal
	DiscountPercent decimal.Decimal
	CouponCode      string
	ShippingAddress Address
	MobilePhone     string
	PaymentMethod   string
	Status          Status
	Paid            bool
	PaidAt          *time.Time
	DeliveredAt     *time.Time
	Available       bool
	Deleted         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Fields is a partial order update. Nil pointers leave the column untouched.
type Fields struct {
	Items           []LineItem
	Total           *decimal.Decimal
	ShippingAddress *Address
	MobilePhone     *string
	Status          *Status
	Paid            *bool
	PaidAt          *time.Time
	DeliveredAt     *time.Time
	Available       *bool
	Deleted         *bool
}

// Empty reports whether the patch changes nothing.
func (f Fields) Empty() bool {
	return f.Items == nil && f.Total == nil && f.ShippingAddress == nil &&
		f.MobilePhone == nil && f.Status == nil && f.Paid == nil &&
		f.PaidAt == nil && f.DeliveredAt == nil && f.Available == nil && f.Deleted == nil
}

// Repository defines persistence operations for orders. Operations that take
// a tx.Scope participate in the caller's transaction; a nil scope runs the
// statement standalone.
type Repository interface {
	Insert(ctx context.Context, scope tx.Scope, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByIDForUpdate reads the order inside the scope with row-lock
	// semantics, so an item change is computed against the committed state
	// and concurrent edits serialize.
	FindByIDForUpdate(ctx context.Context, scope tx.Scope, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateFields(ctx context.Context, scope tx.Scope, id string, fields Fields) (*Order, error)
}
