/*
Package report answers the dashboard's filtered aggregate queries.

PURPOSE:
  Read-only. The store's grouping capability does the arithmetic; this layer
  only composes the filter clause (via the query package) and shapes results.
  Zero-row aggregates report zero, never null, via COALESCE. Revenue figures
  come back from SUM as floats; the exact decimal amounts live on the
  individual sale rows.

ORDERING DECISIONS:
  - revenue-over-time: calendar date ascending; dates with no sales are
    omitted, not zero-filled.
  - sales-by-product: units descending, truncated to a bound limit.
  - revenue-by-category: revenue descending.
  - top seller: units descending, ties broken by lowest product id so the
    result is deterministic.
*/
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atelier/backoffice/inventory"
	"github.com/atelier/backoffice/query"
	"github.com/atelier/backoffice/storage"
)

// DefaultProductLimit bounds sales-by-product when the caller gives no limit.
const DefaultProductLimit = 10

// Aggregator composes and runs the reporting queries.
type Aggregator struct {
	db storage.Queryer
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(db storage.Queryer) *Aggregator {
	return &Aggregator{db: db}
}

// TopProduct is the best-selling product in a summary window.
type TopProduct struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	TotalSold int     `json:"total_sold"`
	Revenue   float64 `json:"revenue"`
}

// Summary aggregates the filtered sale and product sets.
type Summary struct {
	TotalSales    int         `json:"total_sales"`
	TotalRevenue  float64     `json:"total_revenue"`
	TotalProducts int         `json:"total_products"`
	TotalStock    int         `json:"total_stock"`
	TopProduct    *TopProduct `json:"top_product"`
}

// RevenuePoint is one calendar-date bucket of revenue-over-time.
type RevenuePoint struct {
	Date       string  `json:"date"`
	Revenue    float64 `json:"revenue"`
	SalesCount int     `json:"sales_count"`
}

// ProductSales is one row of sales-by-product.
type ProductSales struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	TotalSold int     `json:"total_sold"`
	Revenue   float64 `json:"revenue"`
}

// CategoryRevenue is one row of revenue-by-category.
type CategoryRevenue struct {
	Category   string  `json:"category"`
	Revenue    float64 `json:"revenue"`
	SalesCount int     `json:"sales_count"`
}

// Summary answers the dashboard headline numbers: sale count and revenue over
// the date-filtered sales, product count and stock over the category-filtered
// products, and the top seller by units in the window.
func (a *Aggregator) Summary(ctx context.Context, f query.Filters) (*Summary, error) {
	s := &Summary{}

	sp := query.SaleWhere(f, "")
	err := a.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM sales %s`, sp.Clause()),
		sp.Args()...,
	).Scan(&s.TotalSales, &s.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("summary sales: %w", err)
	}

	pp := query.ProductWhere(query.Filters{Category: f.Category})
	err = a.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(stock_quantity), 0) FROM products %s`, pp.Clause()),
		pp.Args()...,
	).Scan(&s.TotalProducts, &s.TotalStock)
	if err != nil {
		return nil, fmt.Errorf("summary products: %w", err)
	}

	tp := query.SaleWhere(f, "s")
	var top TopProduct
	err = a.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT p.id, p.name, SUM(s.quantity_sold) AS total_sold, SUM(s.total_amount) AS revenue
			FROM sales s JOIN products p ON s.product_id = p.id
			%s
			GROUP BY p.id
			ORDER BY total_sold DESC, p.id ASC
			LIMIT 1`, tp.Clause()),
		tp.Args()...,
	).Scan(&top.ProductID, &top.Name, &top.TotalSold, &top.Revenue)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary top product: %w", err)
	}
	if err == nil {
		s.TopProduct = &top
	}

	return s, nil
}

// RevenueOverTime groups revenue and sale count by calendar date, ascending.
func (a *Aggregator) RevenueOverTime(ctx context.Context, f query.Filters) ([]RevenuePoint, error) {
	p := query.SaleWhere(f, "")
	stmt := fmt.Sprintf(`SELECT DATE(sale_date) AS date, COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS sales_count
		FROM sales %s
		GROUP BY DATE(sale_date)
		ORDER BY date ASC`, p.Clause())

	rows, err := a.db.QueryContext(ctx, stmt, p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("revenue over time: %w", err)
	}
	defer rows.Close()

	points := make([]RevenuePoint, 0)
	for rows.Next() {
		var pt RevenuePoint
		if err := rows.Scan(&pt.Date, &pt.Revenue, &pt.SalesCount); err != nil {
			return nil, fmt.Errorf("revenue over time: %w", err)
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

// SalesByProduct groups units and revenue per product, units descending,
// truncated to limit (DefaultProductLimit when limit < 1). The limit is bound
// as a parameter, never interpolated.
func (a *Aggregator) SalesByProduct(ctx context.Context, f query.Filters, limit int) ([]ProductSales, error) {
	if limit < 1 {
		limit = DefaultProductLimit
	}

	p := query.SaleWhere(f, "s")
	stmt := fmt.Sprintf(`SELECT p.id, p.name, SUM(s.quantity_sold) AS total_sold, SUM(s.total_amount) AS revenue
		FROM sales s JOIN products p ON s.product_id = p.id
		%s
		GROUP BY p.id
		ORDER BY total_sold DESC, p.id ASC
		LIMIT ?`, p.Clause())
	args := append(p.Args(), limit)

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sales by product: %w", err)
	}
	defer rows.Close()

	out := make([]ProductSales, 0)
	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.TotalSold, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("sales by product: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// RevenueByCategory groups revenue and sale count per product category,
// revenue descending.
func (a *Aggregator) RevenueByCategory(ctx context.Context, f query.Filters) ([]CategoryRevenue, error) {
	p := query.SaleWhere(f, "s")
	stmt := fmt.Sprintf(`SELECT p.category, COALESCE(SUM(s.total_amount), 0) AS revenue, COUNT(s.id) AS sales_count
		FROM sales s JOIN products p ON s.product_id = p.id
		%s
		GROUP BY p.category
		ORDER BY revenue DESC`, p.Clause())

	rows, err := a.db.QueryContext(ctx, stmt, p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("revenue by category: %w", err)
	}
	defer rows.Close()

	out := make([]CategoryRevenue, 0)
	for rows.Next() {
		var cr CategoryRevenue
		if err := rows.Scan(&cr.Category, &cr.Revenue, &cr.SalesCount); err != nil {
			return nil, fmt.Errorf("revenue by category: %w", err)
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// ListSales returns filtered sale rows, newest sale date first. The snapshot
// product_name on the row is reported, not the product's current name.
func (a *Aggregator) ListSales(ctx context.Context, f query.Filters) ([]inventory.Sale, error) {
	p := query.SaleWhere(f, "")
	stmt := fmt.Sprintf(`SELECT %s FROM sales %s ORDER BY sale_date DESC, created_at DESC`,
		inventory.SaleColumns, p.Clause())
	args := p.Args()
	if f.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]inventory.Sale, 0)
	for rows.Next() {
		s, err := inventory.ScanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("list sales: %w", err)
		}
		sales = append(sales, *s)
	}
	return sales, rows.Err()
}
