package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an inventory item with a price and a mutable stock count.
// stock_quantity never goes below zero; the engine's guarded decrement and a
// schema CHECK both enforce it.
type Product struct {
	ID            int64
	Name          string
	Category      string
	Material      string
	Weight        decimal.Decimal // grams
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sale is an immutable historical record of units sold. ProductName and Price
// are snapshots copied from the product at sale time and never resynchronized,
// so history keeps reporting the price in effect when the sale happened.
// TotalAmount = Price * QuantitySold, computed once at creation.
type Sale struct {
	ID           int64
	ProductID    int64 // may dangle if the product was later deleted
	ProductName  string
	QuantitySold int
	Price        decimal.Decimal
	TotalAmount  decimal.Decimal
	SaleDate     time.Time
	CreatedAt    time.Time
}

// ImportRow is one decoded row of a bulk sales import.
type ImportRow struct {
	Line         int // 1-based line in the source file, for outcome reporting
	ProductID    int64
	QuantitySold int
	SaleDate     time.Time
}

// RowStatus classifies the outcome of one import row.
type RowStatus string

const (
	RowInserted                 RowStatus = "inserted"
	RowSkippedProductNotFound   RowStatus = "skipped_product_not_found"
	RowSkippedInsufficientStock RowStatus = "skipped_insufficient_stock"
)

// RowOutcome reports what happened to a single import row. Skips are expected
// business conditions, not errors; they never abort the batch.
type RowOutcome struct {
	Line      int
	ProductID int64
	Status    RowStatus
}

// ImportResult summarizes a bulk import: the aggregate inserted count plus a
// per-row outcome list.
type ImportResult struct {
	Inserted int
	Outcomes []RowOutcome
}

// DeleteResult reports the net effect of deleting a sale. RestoredStock is
// false when the referenced product no longer exists; the deletion still
// proceeds, the compensation is simply unapplicable.
type DeleteResult struct {
	SaleID           int64
	ProductID        int64
	QuantityRestored int
	RestoredStock    bool
}
