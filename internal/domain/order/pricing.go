package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-backend/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// PriceItems resolves the unit price of each requested item from its product
// snapshot and returns the priced line items. It is pure: the snapshot map is
// never mutated. A missing snapshot fails with ValidationError; availability
// validation runs before pricing, so this is a defensive invariant.
func PriceItems(items []ItemInput, snapshots map[string]product.Product) ([]LineItem, error) {
	lines := make([]LineItem, len(items))
	for i, item := range items {
		p, ok := snapshots[item.ProductID]
		if !ok {
			return nil, &ValidationError{Reason: "line item references product " + item.ProductID + " outside the snapshot set"}
		}
		lines[i] = LineItem{
			ProductID: item.ProductID,
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
		}
	}
	return lines, nil
}

// ComputeTotal sums unit price times quantity across all items and applies
// the discount percentage, rounded to 2 decimal places. discountPercent is
// expressed as a percentage in [0, 100); zero means no coupon.
func ComputeTotal(items []ItemInput, snapshots map[string]product.Product, discountPercent decimal.Decimal) (decimal.Decimal, error) {
	lines, err := PriceItems(items, snapshots)
	if err != nil {
		return decimal.Zero, err
	}
	return totalOf(lines, discountPercent), nil
}

// totalOf computes the discounted total of already-priced line items.
func totalOf(lines []LineItem, discountPercent decimal.Decimal) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.UnitPrice.Mul(qty))
	}

	total := subtotal.Mul(hundred.Sub(discountPercent)).Div(hundred)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}
