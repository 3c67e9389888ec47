/*
csv.go - Bulk-import row decoding

Decodes an uploaded CSV into ImportRows before any transaction is opened.
Lexical parsing is encoding/csv's job; this layer addresses columns by header
name and validates field types. A malformed field is a validation failure that
rejects the whole upload up front, as opposed to the business-rule skips the
engine applies per row inside the transaction.

Expected header: product_id, quantity_sold, sale_date (any column order,
extra columns ignored).
*/
package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/atelier/backoffice/query"
)

// ReadSalesCSV decodes the reader into import rows.
func ReadSalesCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ValidationError{Field: "file", Message: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"product_id", "quantity_sold", "sale_date"} {
		if _, ok := idx[required]; !ok {
			return nil, &ValidationError{Field: required, Message: "missing column"}
		}
	}

	var rows []ImportRow
	line := 1 // header was line 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line++

		productID, err := strconv.ParseInt(strings.TrimSpace(record[idx["product_id"]]), 10, 64)
		if err != nil {
			return nil, &ValidationError{Field: "product_id", Line: line, Message: "must be an integer"}
		}
		quantity, err := strconv.Atoi(strings.TrimSpace(record[idx["quantity_sold"]]))
		if err != nil || quantity <= 0 {
			return nil, &ValidationError{Field: "quantity_sold", Line: line, Message: "must be a positive integer"}
		}
		saleDate, err := time.Parse(query.DateLayout, strings.TrimSpace(record[idx["sale_date"]]))
		if err != nil {
			return nil, &ValidationError{Field: "sale_date", Line: line, Message: "must be YYYY-MM-DD"}
		}

		rows = append(rows, ImportRow{
			Line:         line,
			ProductID:    productID,
			QuantitySold: quantity,
			SaleDate:     saleDate,
		})
	}
	return rows, nil
}
