/*
dto.go - Request and response shapes for the HTTP API

DTOs decouple the domain model from the wire contract. Monetary fields are
shopspring decimals: they serialize as quoted decimal strings to preserve
precision and accept numbers or strings on the way in. Request types carry
validator/v10 tags; validation failures reject the request before any store
interaction.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelier/backoffice/inventory"
	"github.com/atelier/backoffice/query"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest carries back-office credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse returns the signed token and the account it belongs to.
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Material      string          `json:"material"`
	Weight        decimal.Decimal `json:"weight"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// ProductRequest is the body for creating or updating a product.
type ProductRequest struct {
	Name          string          `json:"name" validate:"required"`
	Category      string          `json:"category" validate:"required"`
	Material      string          `json:"material"`
	Weight        decimal.Decimal `json:"weight"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

func productDTO(p inventory.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Material:      p.Material,
		Weight:        p.Weight,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SALES
// =============================================================================

// SaleDTO represents a sale record. Price and ProductName are the snapshots
// frozen at sale time.
type SaleDTO struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int             `json:"quantity_sold"`
	Price        decimal.Decimal `json:"price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SaleDate     string          `json:"sale_date"`
	CreatedAt    string          `json:"created_at,omitempty"`
}

// CreateSaleRequest is the body for recording a sale.
type CreateSaleRequest struct {
	ProductID    int64  `json:"product_id" validate:"required,gt=0"`
	QuantitySold int    `json:"quantity_sold" validate:"required,gt=0"`
	SaleDate     string `json:"sale_date" validate:"required"`
}

// DeleteSaleResponse reports the compensation applied when a sale is removed.
type DeleteSaleResponse struct {
	Message          string `json:"message"`
	QuantityRestored int    `json:"quantity_restored"`
	StockRestored    bool   `json:"stock_restored"`
}

// RowOutcomeDTO is the per-row result of a bulk import.
type RowOutcomeDTO struct {
	Line      int    `json:"line"`
	ProductID int64  `json:"product_id"`
	Status    string `json:"status"`
}

// ImportResponse summarizes a bulk import.
type ImportResponse struct {
	Inserted int             `json:"inserted"`
	Outcomes []RowOutcomeDTO `json:"outcomes"`
}

func saleDTO(s inventory.Sale) SaleDTO {
	return SaleDTO{
		ID:           s.ID,
		ProductID:    s.ProductID,
		ProductName:  s.ProductName,
		QuantitySold: s.QuantitySold,
		Price:        s.Price,
		TotalAmount:  s.TotalAmount,
		SaleDate:     s.SaleDate.Format(query.DateLayout),
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
	}
}
