/*
catalog.go - Product catalog management

Product lifecycle lives outside the consistency engine: products are created,
edited, and deleted here without touching sale history. Deleting a product
deliberately does not cascade to or block on its sales; the sale rows keep
their snapshots and the product_id reference is allowed to dangle.
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/atelier/backoffice/query"
	"github.com/atelier/backoffice/storage"
)

// Catalog provides product CRUD and category lookups.
type Catalog struct {
	db storage.DB
}

// NewCatalog creates a catalog over the given store.
func NewCatalog(db storage.DB) *Catalog {
	return &Catalog{db: db}
}

// ListProducts returns products matching the search/category filters, ordered
// by an allow-listed sort column.
func (c *Catalog) ListProducts(ctx context.Context, f query.Filters, sortBy, order string) ([]Product, error) {
	p := query.ProductWhere(f)
	stmt := fmt.Sprintf(`SELECT %s FROM products %s %s`,
		productColumns, p.Clause(), query.ProductOrder(sortBy, order))

	rows, err := c.db.QueryContext(ctx, stmt, p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		products = append(products, *prod)
	}
	return products, rows.Err()
}

// GetProduct returns one product or ErrProductNotFound.
func (c *Catalog) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return getProduct(ctx, c.db, id)
}

// CreateProduct inserts a new product and returns its id.
func (c *Catalog) CreateProduct(ctx context.Context, p Product) (int64, error) {
	if err := validateProduct(p); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO products (name, category, material, weight, price, stock_quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Category, p.Material, p.Weight.String(), p.Price.String(), p.StockQuantity, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return res.LastInsertId()
}

// UpdateProduct replaces all editable fields of an existing product.
// Sale snapshots taken before the update are unaffected.
func (c *Catalog) UpdateProduct(ctx context.Context, p Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx,
		`UPDATE products SET name = ?, category = ?, material = ?, weight = ?, price = ?, stock_quantity = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Category, p.Material, p.Weight.String(), p.Price.String(), p.StockQuantity,
		time.Now().UTC().Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product. Sale history referencing it survives.
func (c *Catalog) DeleteProduct(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Categories returns the distinct product categories, ordered.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

func validateProduct(p Product) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if p.Category == "" {
		return &ValidationError{Field: "category", Message: "required"}
	}
	if p.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if p.Weight.IsNegative() {
		return &ValidationError{Field: "weight", Message: "must not be negative"}
	}
	if p.StockQuantity < 0 {
		return &ValidationError{Field: "stock_quantity", Message: "must not be negative"}
	}
	return nil
}
