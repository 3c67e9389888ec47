/*
engine.go - Inventory-Sales Consistency Engine

PURPOSE:
  Keeps a product's stock quantity consistent with the history of recorded
  sales. The engine is the sole writer of stock deltas and the sole
  creator/deleter of sale rows. Every mutating operation runs its full
  read-check-write sequence inside one store transaction: both effects become
  visible together, or neither does.

OVERSELL PROTECTION:
  The stock check against the freshly-read product is advisory (it produces a
  precise error message). The authoritative check is the guarded decrement:

    UPDATE products SET stock_quantity = stock_quantity - ?
    WHERE id = ? AND stock_quantity >= ?

  Zero rows affected aborts with InsufficientStock. Combined with the store
  serializing conflicting write transactions, two concurrent sales of the same
  product cannot both pass the check.

COMPENSATION, NOT UNDO:
  Deleting a sale restores exactly the quantity that was deducted and removes
  the row. It does not resurrect prior stock history. If the product was
  deleted in the meantime, the restoration has nowhere to land; the case is
  tolerated, flagged on the result, and logged.
*/
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/atelier/backoffice/query"
	"github.com/atelier/backoffice/storage"
)

// Engine executes the atomic stock-adjustment protocol.
type Engine struct {
	db  storage.DB
	log zerolog.Logger
}

// NewEngine creates an engine over the given store.
func NewEngine(db storage.DB, log zerolog.Logger) *Engine {
	return &Engine{db: db, log: log}
}

// SaleColumns is the canonical column list for scanning sale rows.
const SaleColumns = "id, product_id, product_name, quantity_sold, price, total_amount, sale_date, created_at"

const productColumns = "id, name, category, material, weight, price, stock_quantity, created_at, updated_at"

// CreateSale records a sale of quantity units of the given product, snapshots
// the product's name and price onto the sale row, and deducts the stock, all
// in one transaction.
func (e *Engine) CreateSale(ctx context.Context, productID int64, quantity int, saleDate time.Time) (*Sale, error) {
	if productID <= 0 {
		return nil, &ValidationError{Field: "product_id", Message: "must be a positive integer"}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity_sold", Message: "must be a positive integer"}
	}
	if saleDate.IsZero() {
		return nil, &ValidationError{Field: "sale_date", Message: "required"}
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	product, err := getProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if product.StockQuantity < quantity {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Available: product.StockQuantity,
			Requested: quantity,
		}
	}

	sale, err := e.insertSale(ctx, tx, product, quantity, saleDate)
	if err != nil {
		return nil, err
	}

	if err := e.deductStock(ctx, tx, product, quantity); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}
	return sale, nil
}

// DeleteSale reverses a sale's net stock effect and removes the record.
func (e *Engine) DeleteSale(ctx context.Context, saleID int64) (*DeleteResult, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sale, err := getSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?`,
		sale.QuantitySold, time.Now().UTC().Format(time.RFC3339), sale.ProductID,
	)
	if err != nil {
		return nil, fmt.Errorf("restore stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("restore stock: %w", err)
	}
	restored := affected > 0
	if !restored {
		// Dangling reference: the product was deleted after the sale.
		e.log.Warn().
			Int64("sale_id", saleID).
			Int64("product_id", sale.ProductID).
			Msg("deleting sale of a product that no longer exists; stock restoration skipped")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, saleID); err != nil {
		return nil, fmt.Errorf("delete sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sale deletion: %w", err)
	}

	return &DeleteResult{
		SaleID:           saleID,
		ProductID:        sale.ProductID,
		QuantityRestored: sale.QuantitySold,
		RestoredStock:    restored,
	}, nil
}

// ImportSales applies a batch of decoded rows inside a single transaction.
//
// Rows referencing a missing product or exceeding available stock are skipped,
// recorded in the outcome list, and never abort the batch. Any unexpected
// store error rolls back the entire batch, including rows already applied.
func (e *Engine) ImportSales(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &ImportResult{Outcomes: make([]RowOutcome, 0, len(rows))}

	for _, row := range rows {
		product, err := getProduct(ctx, tx, row.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			result.Outcomes = append(result.Outcomes, RowOutcome{
				Line: row.Line, ProductID: row.ProductID, Status: RowSkippedProductNotFound,
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		// The read sees this transaction's own earlier decrements, so repeated
		// rows for one product draw down the same in-flight balance.
		if product.StockQuantity < row.QuantitySold {
			result.Outcomes = append(result.Outcomes, RowOutcome{
				Line: row.Line, ProductID: row.ProductID, Status: RowSkippedInsufficientStock,
			})
			continue
		}

		if _, err := e.insertSale(ctx, tx, product, row.QuantitySold, row.SaleDate); err != nil {
			return nil, err
		}
		if err := e.deductStock(ctx, tx, product, row.QuantitySold); err != nil {
			return nil, err
		}

		result.Inserted++
		result.Outcomes = append(result.Outcomes, RowOutcome{
			Line: row.Line, ProductID: row.ProductID, Status: RowInserted,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

// =============================================================================
// TRANSACTION-SCOPED HELPERS
// =============================================================================

func (e *Engine) insertSale(ctx context.Context, tx storage.Tx, product *Product, quantity int, saleDate time.Time) (*Sale, error) {
	total := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sales (product_id, product_name, quantity_sold, price, total_amount, sale_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.Name, quantity, product.Price.String(), total.String(),
		saleDate.Format(query.DateLayout), now.Format(time.RFC3339),
	)
	if err != nil {
		e.log.Error().Err(err).Int64("product_id", product.ID).Msg("sale insert failed")
		return nil, fmt.Errorf("insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}

	return &Sale{
		ID:           id,
		ProductID:    product.ID,
		ProductName:  product.Name,
		QuantitySold: quantity,
		Price:        product.Price,
		TotalAmount:  total,
		SaleDate:     saleDate,
		CreatedAt:    now,
	}, nil
}

func (e *Engine) deductStock(ctx context.Context, tx storage.Tx, product *Product, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ?
		 WHERE id = ? AND stock_quantity >= ?`,
		quantity, time.Now().UTC().Format(time.RFC3339), product.ID, quantity,
	)
	if err != nil {
		return fmt.Errorf("deduct stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deduct stock: %w", err)
	}
	if affected == 0 {
		// Lost a race with a concurrent sale: the advisory check passed but
		// the guarded decrement found less stock than requested.
		return &InsufficientStockError{
			ProductID: product.ID,
			Available: product.StockQuantity,
			Requested: quantity,
		}
	}
	return nil
}

func getProduct(ctx context.Context, q storage.Queryer, id int64) (*Product, error) {
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func getSale(ctx context.Context, q storage.Queryer, id int64) (*Sale, error) {
	row := q.QueryRowContext(ctx, `SELECT `+SaleColumns+` FROM sales WHERE id = ?`, id)
	s, err := ScanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(rs rowScanner) (*Product, error) {
	var (
		p                    Product
		weight, price        string
		createdAt, updatedAt string
	)
	if err := rs.Scan(&p.ID, &p.Name, &p.Category, &p.Material, &weight, &price,
		&p.StockQuantity, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.Weight, err = decimal.NewFromString(weight); err != nil {
		return nil, fmt.Errorf("malformed weight %q: %w", weight, err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("malformed price %q: %w", price, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ScanSale scans one sale row in SaleColumns order. Shared with the reporting
// layer's sale listing.
func ScanSale(rs rowScanner) (*Sale, error) {
	var (
		s                   Sale
		price, total        string
		saleDate, createdAt string
	)
	if err := rs.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.QuantitySold,
		&price, &total, &saleDate, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if s.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("malformed price %q: %w", price, err)
	}
	if s.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("malformed total %q: %w", total, err)
	}
	if s.SaleDate, err = time.Parse(query.DateLayout, saleDate); err != nil {
		return nil, fmt.Errorf("malformed sale date %q: %w", saleDate, err)
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}
