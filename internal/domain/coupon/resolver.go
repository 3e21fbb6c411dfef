package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Resolver turns an optional coupon code into a discount percentage.
type Resolver interface {
	ResolveDiscount(ctx context.Context, code string) (decimal.Decimal, error)
}

// RepoResolver implements Resolver by looking up coupons in a Repository
// and checking their validity window.
type RepoResolver struct {
	repo Repository
	now  func() time.Time
}

// NewRepoResolver creates a RepoResolver backed by the given Repository.
func NewRepoResolver(repo Repository) *RepoResolver {
	return &RepoResolver{repo: repo, now: time.Now}
}

// ResolveDiscount returns the discount percentage for the given code.
// An empty code resolves to zero without a lookup. A known but inactive
// coupon, or one outside its validity window, fails with ErrExpired.
func (r *RepoResolver) ResolveDiscount(ctx context.Context, code string) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}

	c, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, errors.Wrap(err, "lookup coupon")
	}

	now := r.now()
	if !c.Active || now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return decimal.Zero, ErrExpired
	}

	return c.DiscountPercent, nil
}
