package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-backend/internal/domain/product"
)

func snapshotsOf(products ...product.Product) map[string]product.Product {
	m := make(map[string]product.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

func testProduct(id string, price string, stock map[string]int) product.Product {
	return product.Product{
		ID:        id,
		Name:      "Product " + id,
		Category:  "test",
		Price:     decimal.RequireFromString(price),
		Available: true,
		Stock:     stock,
	}
}

func TestComputeTotal_NoDiscount(t *testing.T) {
	snaps := snapshotsOf(
		testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}),
		testProduct("p2", "25.50", map[string]int{product.DefaultColor: 5}),
	)
	items := []ItemInput{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}

	total, err := ComputeTotal(items, snaps, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("45.50").Equal(total), "got %s", total)
}

func TestComputeTotal_TenPercentOffHundred(t *testing.T) {
	snaps := snapshotsOf(testProduct("p1", "100.00", map[string]int{product.DefaultColor: 1}))
	items := []ItemInput{{ProductID: "p1", Quantity: 1}}

	total, err := ComputeTotal(items, snaps, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("90.00").Equal(total), "got %s", total)
}

func TestComputeTotal_RoundsToCents(t *testing.T) {
	snaps := snapshotsOf(testProduct("p1", "9.99", map[string]int{product.DefaultColor: 10}))
	items := []ItemInput{{ProductID: "p1", Quantity: 3}}

	// 29.97 * 0.85 = 25.4745 → 25.47
	total, err := ComputeTotal(items, snaps, decimal.NewFromInt(15))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.47").Equal(total), "got %s", total)
}

func TestComputeTotal_MissingSnapshotFails(t *testing.T) {
	items := []ItemInput{{ProductID: "ghost", Quantity: 1}}

	_, err := ComputeTotal(items, snapshotsOf(), decimal.Zero)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "ghost")
}

func TestComputeTotal_Deterministic(t *testing.T) {
	snaps := snapshotsOf(
		testProduct("p1", "3.33", map[string]int{product.DefaultColor: 9}),
		testProduct("p2", "7.77", map[string]int{product.DefaultColor: 9}),
	)
	items := []ItemInput{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 2},
	}

	first, err := ComputeTotal(items, snaps, decimal.NewFromInt(5))
	require.NoError(t, err)
	second, err := ComputeTotal(items, snaps, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestPriceItems_LocksUnitPrices(t *testing.T) {
	snaps := snapshotsOf(testProduct("p1", "12.40", map[string]int{"red": 4}))
	items := []ItemInput{{ProductID: "p1", Color: "red", Quantity: 2}}

	lines, err := PriceItems(items, snaps)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, "red", lines[0].Color)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("12.40").Equal(lines[0].UnitPrice))
}
