/*
Package query composes parameterized filter clauses.

PURPOSE:
  Both the consistency engine's lookups and the reporting aggregator answer
  requests carrying a sparse set of optional filters. This package turns those
  filters into a conjunctive WHERE fragment plus a positional parameter list.
  User-supplied values are always bound, never formatted into the statement
  text. Sort columns and directions are validated against an allow-list, not
  interpolated.

GUARANTEES:
  - An absent filter contributes no fragment and no parameter.
  - Parameter order matches placeholder order exactly.
  - No filters at all renders an empty clause (always-true semantics).
*/
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format accepted by every date filter.
const DateLayout = "2006-01-02"

// Filters is the optional-filter vocabulary shared across listings and
// reports. Zero values mean "absent".
type Filters struct {
	StartDate string // inclusive, YYYY-MM-DD
	EndDate   string // inclusive, YYYY-MM-DD
	Category  string
	Search    string // matches product name or material
	ProductID int64
	Limit     int
}

// Predicate accumulates fragments and their bound parameters in append order.
type Predicate struct {
	frags []string
	args  []any
}

// Where appends a fragment and its parameters.
func (p *Predicate) Where(frag string, args ...any) *Predicate {
	p.frags = append(p.frags, frag)
	p.args = append(p.args, args...)
	return p
}

// Clause renders the WHERE clause, or an empty string when no filters were
// appended.
func (p *Predicate) Clause() string {
	if len(p.frags) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(p.frags, " AND ")
}

// Args returns the bound parameters, positionally matching Clause.
func (p *Predicate) Args() []any {
	return p.args
}

// SaleWhere builds the predicate for sale-row filters. alias is the sales
// table alias in the enclosing statement (e.g. "s"), or empty for none.
func SaleWhere(f Filters, alias string) *Predicate {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	p := &Predicate{}
	if f.StartDate != "" {
		p.Where(col("sale_date")+" >= ?", f.StartDate)
	}
	if f.EndDate != "" {
		p.Where(col("sale_date")+" <= ?", f.EndDate)
	}
	if f.ProductID != 0 {
		p.Where(col("product_id")+" = ?", f.ProductID)
	}
	return p
}

// ProductWhere builds the predicate for product filters.
func ProductWhere(f Filters) *Predicate {
	p := &Predicate{}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		p.Where("(name LIKE ? OR material LIKE ?)", like, like)
	}
	if f.Category != "" {
		p.Where("category = ?", f.Category)
	}
	return p
}

// productSortColumns is the allow-list for product listing sort keys.
var productSortColumns = map[string]bool{
	"id":             true,
	"name":           true,
	"category":       true,
	"material":       true,
	"weight":         true,
	"price":          true,
	"stock_quantity": true,
}

// ProductOrder renders an ORDER BY for the product listing. Anything outside
// the allow-list falls back to id ascending rather than being interpolated.
func ProductOrder(sortBy, order string) string {
	if !productSortColumns[sortBy] {
		sortBy = "id"
	}
	dir := strings.ToUpper(order)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", sortBy, dir)
}

// ParseLimit parses a raw limit value. Empty means the default; anything
// non-numeric or non-positive is a validation failure, never a silent zero.
func ParseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

// ValidDate reports whether s is a well-formed calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
