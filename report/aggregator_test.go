package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/backoffice/inventory"
	"github.com/atelier/backoffice/query"
	"github.com/atelier/backoffice/report"
	"github.com/atelier/backoffice/storage/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	agg     *report.Aggregator
	engine  *inventory.Engine
	catalog *inventory.Catalog
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlite.New(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &fixture{
		agg:     report.NewAggregator(store),
		engine:  inventory.NewEngine(store, zerolog.Nop()),
		catalog: inventory.NewCatalog(store),
	}
}

func (f *fixture) product(t *testing.T, name, category, price string, stock int) int64 {
	t.Helper()
	d, err := decimal.NewFromString(price)
	require.NoError(t, err)
	id, err := f.catalog.CreateProduct(context.Background(), inventory.Product{
		Name: name, Category: category, Material: "gold", Price: d, StockQuantity: stock,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) sale(t *testing.T, productID int64, qty int, day string) {
	t.Helper()
	d, err := time.Parse(query.DateLayout, day)
	require.NoError(t, err)
	_, err = f.engine.CreateSale(context.Background(), productID, qty, d)
	require.NoError(t, err)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary_EmptyStoreReportsZeros(t *testing.T) {
	f := newFixture(t)

	s, err := f.agg.Summary(context.Background(), query.Filters{})
	require.NoError(t, err)

	assert.Equal(t, 0, s.TotalSales)
	assert.Equal(t, float64(0), s.TotalRevenue, "zero, never null")
	assert.Equal(t, 0, s.TotalProducts)
	assert.Equal(t, 0, s.TotalStock)
	assert.Nil(t, s.TopProduct)
}

func TestSummary_AggregatesFilteredWindow(t *testing.T) {
	f := newFixture(t)
	ring := f.product(t, "Ring", "Rings", "100", 20)
	chain := f.product(t, "Chain", "Necklaces", "50", 20)

	f.sale(t, ring, 2, "2024-01-01")  // 200, in window
	f.sale(t, chain, 1, "2024-01-02") // 50, in window
	f.sale(t, ring, 5, "2024-02-15")  // outside window

	s, err := f.agg.Summary(context.Background(), query.Filters{
		StartDate: "2024-01-01", EndDate: "2024-01-31",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalSales)
	assert.Equal(t, float64(250), s.TotalRevenue)
	assert.Equal(t, 2, s.TotalProducts)
	assert.Equal(t, 32, s.TotalStock, "stock reflects all deductions: (20-7) + (20-1)")
	require.NotNil(t, s.TopProduct)
	assert.Equal(t, "Ring", s.TopProduct.Name)
	assert.Equal(t, 2, s.TopProduct.TotalSold)
}

func TestSummary_TopProductTieBreaksOnLowestID(t *testing.T) {
	// Both products sold the same units in the window; the lower product id
	// wins so the result is deterministic.

	f := newFixture(t)
	first := f.product(t, "First", "Rings", "10", 10)
	second := f.product(t, "Second", "Rings", "10", 10)
	require.Less(t, first, second)

	f.sale(t, second, 3, "2024-01-01")
	f.sale(t, first, 3, "2024-01-02")

	s, err := f.agg.Summary(context.Background(), query.Filters{})
	require.NoError(t, err)

	require.NotNil(t, s.TopProduct)
	assert.Equal(t, first, s.TopProduct.ProductID)
}

func TestSummary_CategoryFilterAppliesToProductsOnly(t *testing.T) {
	f := newFixture(t)
	f.product(t, "Ring", "Rings", "100", 5)
	f.product(t, "Chain", "Necklaces", "50", 7)

	s, err := f.agg.Summary(context.Background(), query.Filters{Category: "Rings"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.TotalProducts)
	assert.Equal(t, 5, s.TotalStock)
}

// =============================================================================
// REVENUE OVER TIME
// =============================================================================

func TestRevenueOverTime_OrderedBucketsOmitEmptyDates(t *testing.T) {
	// Sales on Jan 1 and Jan 3 only: two buckets, ascending, Jan 2 omitted
	// rather than zero-filled.

	f := newFixture(t)
	ring := f.product(t, "Ring", "Rings", "10", 100)

	f.sale(t, ring, 1, "2024-01-01") // 10
	f.sale(t, ring, 2, "2024-01-03") // 20
	f.sale(t, ring, 9, "2024-03-09") // outside range

	points, err := f.agg.RevenueOverTime(context.Background(), query.Filters{
		StartDate: "2024-01-01", EndDate: "2024-01-03",
	})
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-01", points[0].Date)
	assert.Equal(t, float64(10), points[0].Revenue)
	assert.Equal(t, 1, points[0].SalesCount)
	assert.Equal(t, "2024-01-03", points[1].Date)
	assert.Equal(t, float64(20), points[1].Revenue)
}

func TestRevenueOverTime_MergesSameDaySales(t *testing.T) {
	f := newFixture(t)
	ring := f.product(t, "Ring", "Rings", "10", 100)

	f.sale(t, ring, 1, "2024-01-01")
	f.sale(t, ring, 4, "2024-01-01")

	points, err := f.agg.RevenueOverTime(context.Background(), query.Filters{})
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.Equal(t, float64(50), points[0].Revenue)
	assert.Equal(t, 2, points[0].SalesCount)
}

// =============================================================================
// SALES BY PRODUCT / REVENUE BY CATEGORY
// =============================================================================

func TestSalesByProduct_DescendingUnitsWithLimit(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "Rings", "10", 100)
	b := f.product(t, "B", "Rings", "10", 100)
	c := f.product(t, "C", "Rings", "10", 100)

	f.sale(t, a, 1, "2024-01-01")
	f.sale(t, b, 5, "2024-01-01")
	f.sale(t, c, 3, "2024-01-01")

	out, err := f.agg.SalesByProduct(context.Background(), query.Filters{}, 2)
	require.NoError(t, err)

	require.Len(t, out, 2, "truncated to the bound limit")
	assert.Equal(t, "B", out[0].Name)
	assert.Equal(t, 5, out[0].TotalSold)
	assert.Equal(t, "C", out[1].Name)
}

func TestSalesByProduct_DefaultLimit(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "Rings", "10", 100)
	f.sale(t, a, 1, "2024-01-01")

	out, err := f.agg.SalesByProduct(context.Background(), query.Filters{}, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRevenueByCategory_DescendingRevenue(t *testing.T) {
	f := newFixture(t)
	ring := f.product(t, "Ring", "Rings", "100", 100)
	chain := f.product(t, "Chain", "Necklaces", "400", 100)

	f.sale(t, ring, 1, "2024-01-01")  // Rings: 100
	f.sale(t, chain, 1, "2024-01-01") // Necklaces: 400

	out, err := f.agg.RevenueByCategory(context.Background(), query.Filters{})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "Necklaces", out[0].Category)
	assert.Equal(t, float64(400), out[0].Revenue)
	assert.Equal(t, "Rings", out[1].Category)
	assert.Equal(t, 1, out[1].SalesCount)
}

// =============================================================================
// SALE LISTING
// =============================================================================

func TestListSales_FiltersAndOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ring := f.product(t, "Ring", "Rings", "10", 100)
	chain := f.product(t, "Chain", "Necklaces", "20", 100)

	f.sale(t, ring, 1, "2024-01-01")
	f.sale(t, chain, 1, "2024-01-05")
	f.sale(t, ring, 2, "2024-01-03")

	all, err := f.agg.ListSales(context.Background(), query.Filters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Chain", all[0].ProductName)
	assert.Equal(t, "2024-01-03", all[1].SaleDate.Format(query.DateLayout))
	assert.Equal(t, "2024-01-01", all[2].SaleDate.Format(query.DateLayout))

	ringOnly, err := f.agg.ListSales(context.Background(), query.Filters{ProductID: ring})
	require.NoError(t, err)
	assert.Len(t, ringOnly, 2)

	limited, err := f.agg.ListSales(context.Background(), query.Filters{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListSales_ReportsSnapshotNameForDanglingReference(t *testing.T) {
	// The product is deleted after the sale; the listing still reports the
	// snapshot name frozen at sale time.

	f := newFixture(t)
	ring := f.product(t, "Vanished Ring", "Rings", "10", 10)
	f.sale(t, ring, 1, "2024-01-01")
	require.NoError(t, f.catalog.DeleteProduct(context.Background(), ring))

	sales, err := f.agg.ListSales(context.Background(), query.Filters{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "Vanished Ring", sales[0].ProductName)
}
