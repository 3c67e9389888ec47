package inventory_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/backoffice/inventory"
	"github.com/atelier/backoffice/storage"
	"github.com/atelier/backoffice/storage/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEngine(t *testing.T) (*inventory.Engine, *inventory.Catalog, *sqlite.Store) {
	store := newTestStore(t)
	return inventory.NewEngine(store, zerolog.Nop()), inventory.NewCatalog(store), store
}

func seedProduct(t *testing.T, c *inventory.Catalog, name, price string, stock int) int64 {
	t.Helper()
	id, err := c.CreateProduct(context.Background(), inventory.Product{
		Name:          name,
		Category:      "Rings",
		Material:      "gold",
		Weight:        decimal.NewFromFloat(4.2),
		Price:         mustDecimal(t, price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return id
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func countSales(t *testing.T, q storage.Queryer) int {
	t.Helper()
	var n int
	require.NoError(t, q.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM sales`).Scan(&n))
	return n
}

func stockOf(t *testing.T, c *inventory.Catalog, id int64) int {
	t.Helper()
	p, err := c.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

// =============================================================================
// CREATE-SALE
// =============================================================================

func TestCreateSale_DeductsStockAndSnapshotsPrice(t *testing.T) {
	// GIVEN: a product with 10 units at 150.50
	// WHEN: selling 3 units
	// THEN: stock drops to 7 and the sale carries total_amount = 150.50 * 3

	engine, catalog, store := newTestEngine(t)
	ctx := context.Background()
	id := seedProduct(t, catalog, "Gold Band", "150.50", 10)

	sale, err := engine.CreateSale(ctx, id, 3, date(2024, time.March, 10))
	require.NoError(t, err)

	assert.Equal(t, 7, stockOf(t, catalog, id))
	assert.Equal(t, 1, countSales(t, store))
	assert.Equal(t, "Gold Band", sale.ProductName)
	assert.True(t, sale.TotalAmount.Equal(mustDecimal(t, "451.50")),
		"total %s should equal 451.50", sale.TotalAmount)
	assert.True(t, sale.Price.Equal(mustDecimal(t, "150.50")))
}

func TestCreateSale_SnapshotSurvivesPriceChange(t *testing.T) {
	// The sale must keep reporting the price in effect at sale time even
	// after the product's price is edited.

	engine, catalog, store := newTestEngine(t)
	ctx := context.Background()
	id := seedProduct(t, catalog, "Silver Chain", "80", 5)

	sale, err := engine.CreateSale(ctx, id, 1, date(2024, time.June, 1))
	require.NoError(t, err)

	p, err := catalog.GetProduct(ctx, id)
	require.NoError(t, err)
	p.Price = mustDecimal(t, "120")
	require.NoError(t, catalog.UpdateProduct(ctx, *p))

	var price, total string
	err = store.QueryRowContext(ctx, `SELECT price, total_amount FROM sales WHERE id = ?`, sale.ID).
		Scan(&price, &total)
	require.NoError(t, err)
	assert.Equal(t, "80", price)
	assert.Equal(t, "80", total)
}

func TestCreateSale_ProductNotFound(t *testing.T) {
	engine, _, store := newTestEngine(t)

	_, err := engine.CreateSale(context.Background(), 999, 1, date(2024, time.March, 10))

	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
	assert.True(t, inventory.IsNotFound(err))
	assert.Equal(t, 0, countSales(t, store), "aborted sale must leave no row behind")
}

func TestCreateSale_InsufficientStock_LeavesStateUnchanged(t *testing.T) {
	// GIVEN: 2 units in stock
	// WHEN: selling 5
	// THEN: InsufficientStock with details, and neither table changes

	engine, catalog, store := newTestEngine(t)
	id := seedProduct(t, catalog, "Pearl Earrings", "60", 2)

	_, err := engine.CreateSale(context.Background(), id, 5, date(2024, time.March, 10))

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.True(t, inventory.IsClientError(err))

	assert.Equal(t, 2, stockOf(t, catalog, id))
	assert.Equal(t, 0, countSales(t, store))
}

func TestCreateSale_ExactStock_DrainsToZero(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	id := seedProduct(t, catalog, "Opal Pendant", "200", 4)

	_, err := engine.CreateSale(context.Background(), id, 4, date(2024, time.March, 10))
	require.NoError(t, err)

	assert.Equal(t, 0, stockOf(t, catalog, id))
}

func TestCreateSale_RejectsInvalidInputBeforeStore(t *testing.T) {
	engine, catalog, store := newTestEngine(t)
	id := seedProduct(t, catalog, "Ring", "10", 10)
	ctx := context.Background()

	_, err := engine.CreateSale(ctx, id, 0, date(2024, time.March, 10))
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = engine.CreateSale(ctx, id, -2, date(2024, time.March, 10))
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = engine.CreateSale(ctx, -1, 1, date(2024, time.March, 10))
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = engine.CreateSale(ctx, id, 1, time.Time{})
	assert.ErrorIs(t, err, inventory.ErrValidation)

	assert.Equal(t, 0, countSales(t, store))
}

// =============================================================================
// DELETE-SALE
// =============================================================================

func TestDeleteSale_RestoresStockAndRemovesRow(t *testing.T) {
	engine, catalog, store := newTestEngine(t)
	ctx := context.Background()
	id := seedProduct(t, catalog, "Gold Band", "150", 10)

	sale, err := engine.CreateSale(ctx, id, 4, date(2024, time.March, 10))
	require.NoError(t, err)
	require.Equal(t, 6, stockOf(t, catalog, id))

	res, err := engine.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)

	assert.True(t, res.RestoredStock)
	assert.Equal(t, 4, res.QuantityRestored)
	assert.Equal(t, 10, stockOf(t, catalog, id), "create then delete is a net no-op on stock")
	assert.Equal(t, 0, countSales(t, store), "the sale truly disappears")
}

func TestDeleteSale_NotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.DeleteSale(context.Background(), 42)

	assert.ErrorIs(t, err, inventory.ErrSaleNotFound)
}

func TestDeleteSale_DanglingProductReference(t *testing.T) {
	// GIVEN: a sale whose product has since been deleted
	// WHEN: deleting the sale
	// THEN: the deletion succeeds; the restoration is flagged as skipped

	engine, catalog, store := newTestEngine(t)
	ctx := context.Background()
	id := seedProduct(t, catalog, "Discontinued Brooch", "95", 3)

	sale, err := engine.CreateSale(ctx, id, 2, date(2024, time.March, 10))
	require.NoError(t, err)
	require.NoError(t, catalog.DeleteProduct(ctx, id))

	res, err := engine.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)

	assert.False(t, res.RestoredStock)
	assert.Equal(t, 0, countSales(t, store))
}

// =============================================================================
// BULK IMPORT
// =============================================================================

func TestImportSales_SkipsMissingProductRow(t *testing.T) {
	// Row 2 of 3 references a nonexistent product: exactly rows 1 and 3 are
	// inserted with their stock deltas; row 2 is absent everywhere.

	engine, catalog, store := newTestEngine(t)
	ctx := context.Background()
	a := seedProduct(t, catalog, "A", "10", 10)
	b := seedProduct(t, catalog, "B", "20", 10)

	result, err := engine.ImportSales(ctx, []inventory.ImportRow{
		{Line: 2, ProductID: a, QuantitySold: 2, SaleDate: date(2024, time.January, 1)},
		{Line: 3, ProductID: 999, QuantitySold: 1, SaleDate: date(2024, time.January, 2)},
		{Line: 4, ProductID: b, QuantitySold: 3, SaleDate: date(2024, time.January, 3)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, inventory.RowInserted, result.Outcomes[0].Status)
	assert.Equal(t, inventory.RowSkippedProductNotFound, result.Outcomes[1].Status)
	assert.Equal(t, inventory.RowInserted, result.Outcomes[2].Status)

	assert.Equal(t, 8, stockOf(t, catalog, a))
	assert.Equal(t, 7, stockOf(t, catalog, b))
	assert.Equal(t, 2, countSales(t, store))
}

func TestImportSales_SkipsInsufficientStockRow(t *testing.T) {
	engine, catalog, _ := newTestEngine(t)
	id := seedProduct(t, catalog, "Scarce", "10", 3)

	result, err := engine.ImportSales(context.Background(), []inventory.ImportRow{
		{Line: 2, ProductID: id, QuantitySold: 5, SaleDate: date(2024, time.January, 1)},
		{Line: 3, ProductID: id, QuantitySold: 2, SaleDate: date(2024, time.January, 2)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, inventory.RowSkippedInsufficientStock, result.Outcomes[0].Status)
	assert.Equal(t, inventory.RowInserted, result.Outcomes[1].Status)
	assert.Equal(t, 1, stockOf(t, catalog, id))
}

func TestImportSales_LaterRowsSeeEarlierDeductions(t *testing.T) {
	// Two rows draw down the same product inside the one batch transaction;
	// the second row's stock check must see the first row's deduction.

	engine, catalog, _ := newTestEngine(t)
	id := seedProduct(t, catalog, "Thin Stock", "10", 5)

	result, err := engine.ImportSales(context.Background(), []inventory.ImportRow{
		{Line: 2, ProductID: id, QuantitySold: 3, SaleDate: date(2024, time.January, 1)},
		{Line: 3, ProductID: id, QuantitySold: 3, SaleDate: date(2024, time.January, 2)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, inventory.RowSkippedInsufficientStock, result.Outcomes[1].Status)
	assert.Equal(t, 2, stockOf(t, catalog, id))
}

func TestImportSales_EmptyBatch(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	result, err := engine.ImportSales(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Empty(t, result.Outcomes)
}

// =============================================================================
// STORAGE FAILURE - WHOLE-BATCH ROLLBACK
// =============================================================================

// flakyDB wraps a real store and injects a failure on the nth write, to prove
// the batch rolls back in full even after rows were applied in-flight.
type flakyDB struct {
	inner     storage.DB
	failAfter int
	execs     int
}

func (f *flakyDB) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return f.inner.QueryContext(ctx, q, args...)
}

func (f *flakyDB) QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row {
	return f.inner.QueryRowContext(ctx, q, args...)
}

func (f *flakyDB) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return f.inner.ExecContext(ctx, q, args...)
}

func (f *flakyDB) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{f: f, inner: tx}, nil
}

type flakyTx struct {
	f     *flakyDB
	inner storage.Tx
}

func (t *flakyTx) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.inner.QueryContext(ctx, q, args...)
}

func (t *flakyTx) QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row {
	return t.inner.QueryRowContext(ctx, q, args...)
}

func (t *flakyTx) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	t.f.execs++
	if t.f.execs > t.f.failAfter {
		return nil, errors.New("disk I/O error")
	}
	return t.inner.ExecContext(ctx, q, args...)
}

func (t *flakyTx) Commit() error   { return t.inner.Commit() }
func (t *flakyTx) Rollback() error { return t.inner.Rollback() }

func TestImportSales_StoreErrorRollsBackWholeBatch(t *testing.T) {
	// GIVEN: a 3-row batch where the store fails while applying row 2
	// THEN: the pre-batch state is restored for all three rows, even though
	// row 1 had already been applied inside the open transaction.

	store := newTestStore(t)
	catalog := inventory.NewCatalog(store)
	a := seedProduct(t, catalog, "A", "10", 10)
	b := seedProduct(t, catalog, "B", "20", 10)

	// Row 1 costs two writes (insert + decrement); the third write is row 2's
	// insert, which fails.
	flaky := &flakyDB{inner: store, failAfter: 2}
	engine := inventory.NewEngine(flaky, zerolog.Nop())

	_, err := engine.ImportSales(context.Background(), []inventory.ImportRow{
		{Line: 2, ProductID: a, QuantitySold: 2, SaleDate: date(2024, time.January, 1)},
		{Line: 3, ProductID: b, QuantitySold: 1, SaleDate: date(2024, time.January, 2)},
		{Line: 4, ProductID: a, QuantitySold: 1, SaleDate: date(2024, time.January, 3)},
	})

	require.Error(t, err)
	assert.False(t, inventory.IsClientError(err), "storage failures surface generically")

	assert.Equal(t, 10, stockOf(t, catalog, a))
	assert.Equal(t, 10, stockOf(t, catalog, b))
	assert.Equal(t, 0, countSales(t, store))
}

func TestCreateSale_StoreErrorRollsBack(t *testing.T) {
	store := newTestStore(t)
	catalog := inventory.NewCatalog(store)
	id := seedProduct(t, catalog, "A", "10", 10)

	// Fail the decrement after the sale insert succeeded.
	flaky := &flakyDB{inner: store, failAfter: 1}
	engine := inventory.NewEngine(flaky, zerolog.Nop())

	_, err := engine.CreateSale(context.Background(), id, 2, date(2024, time.January, 1))

	require.Error(t, err)
	assert.Equal(t, 10, stockOf(t, catalog, id))
	assert.Equal(t, 0, countSales(t, store), "no partial effect is ever visible")
}
