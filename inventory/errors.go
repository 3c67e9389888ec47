/*
errors.go - Error taxonomy for the inventory-sales core

CATEGORIES:
  1. Not-found      - referenced product or sale does not exist
  2. Insufficient   - requested quantity exceeds available stock
  3. Validation     - malformed input, rejected before any store interaction
  4. Storage        - unexpected store-layer failure, always rolls back

The first three are expected, caller-addressable conditions. Storage failures
are opaque to callers and surface generically; the caller may retry the whole
operation.
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProductNotFound is returned when a referenced product doesn't exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrSaleNotFound is returned when a referenced sale doesn't exist.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrInsufficientStock is returned when a sale would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrValidation is returned for malformed input, before any transaction
	// is opened.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError details a stock shortage so the caller can react
// (e.g. reduce the requested quantity).
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ValidationError names the offending field. Line is set when the input came
// from a tabular import.
type ValidationError struct {
	Field   string
	Line    int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing product or sale.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrSaleNotFound)
}

// IsClientError reports whether err is addressable by the caller, as opposed
// to an unexpected storage failure.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrValidation)
}
