package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon is inactive or outside its
	// validity window.
	ErrExpired = errors.New("coupon expired")
)

// Coupon is a discount code with a validity window. Read-only from the
// order workflow's perspective.
type Coupon struct {
	Code            string
	DiscountPercent decimal.Decimal
	ValidFrom       time.Time
	ValidUntil      time.Time
	Active          bool
}

// Repository provides lookup of coupons by code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
