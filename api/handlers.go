/*
handlers.go - HTTP handlers for the back-office API

ENDPOINTS:
  Auth:
    POST   /api/auth/login                 Issue a session token

  Products:
    GET    /api/products                   List (search/category/sort filters)
    POST   /api/products                   Create
    GET    /api/products/{id}              Get one
    PUT    /api/products/{id}              Update
    DELETE /api/products/{id}              Delete (sale history survives)
    GET    /api/products/meta/categories   Distinct categories

  Sales:
    GET    /api/sales                      List (date/product filters)
    POST   /api/sales                      Record a sale (atomic stock deduction)
    DELETE /api/sales/{id}                 Delete a sale (atomic stock restore)
    POST   /api/sales/upload-csv           Bulk import (one transaction, skip policy)

  Analytics:
    GET    /api/analytics/summary
    GET    /api/analytics/revenue-over-time
    GET    /api/analytics/sales-by-product
    GET    /api/analytics/revenue-by-category

ERROR MAPPING:
  ValidationFailure -> 400 (before any store interaction)
  NotFound          -> 404
  InsufficientStock -> 409 (caller can reduce quantity and retry)
  StorageFailure    -> 500, opaque body, detail only in logs
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/atelier/backoffice/inventory"
	"github.com/atelier/backoffice/query"
	"github.com/atelier/backoffice/report"
	"github.com/atelier/backoffice/storage/sqlite"
)

var validate = validator.New()

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *inventory.Engine
	Catalog *inventory.Catalog
	Reports *report.Aggregator
	Auth    *Authenticator

	log zerolog.Logger
}

// NewHandler wires the handler with its collaborators.
func NewHandler(store *sqlite.Store, auth *Authenticator, log zerolog.Logger) *Handler {
	return &Handler{
		Store:   store,
		Engine:  inventory.NewEngine(store, log),
		Catalog: inventory.NewCatalog(store),
		Reports: report.NewAggregator(store),
		Auth:    auth,
		log:     log,
	}
}

// Healthz is a liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns products matching optional search/category filters,
// sorted by an allow-listed column.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseFilters(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	products, err := h.Catalog.ListProducts(r.Context(), f, q.Get("sortBy"), q.Get("order"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = productDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productDTO(*product))
}

// CreateProduct creates a product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.Catalog.CreateProduct(r.Context(), inventory.Product{
		Name:          req.Name,
		Category:      req.Category,
		Material:      req.Material,
		Weight:        req.Weight,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "message": "Product created successfully"})
}

// UpdateProduct replaces a product's editable fields.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.Catalog.UpdateProduct(r.Context(), inventory.Product{
		ID:            id,
		Name:          req.Name,
		Category:      req.Category,
		Material:      req.Material,
		Weight:        req.Weight,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated successfully"})
}

// DeleteProduct removes a product. Its sale history is left intact.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.Catalog.DeleteProduct(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// ListCategories returns the distinct product categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Catalog.Categories(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns filtered sale records, newest first.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	sales, err := h.Reports.ListSales(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = saleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSale records a sale and deducts stock atomically.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	saleDate, err := time.Parse(query.DateLayout, req.SaleDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
		return
	}

	sale, err := h.Engine.CreateSale(r.Context(), req.ProductID, req.QuantitySold, saleDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saleDTO(*sale))
}

// DeleteSale reverses a sale's stock effect and removes the record.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.Engine.DeleteSale(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteSaleResponse{
		Message:          "Sale deleted successfully",
		QuantityRestored: res.QuantityRestored,
		StockRestored:    res.RestoredStock,
	})
}

// UploadSalesCSV bulk-imports sales from a multipart CSV upload (field "file").
func (h *Handler) UploadSalesCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", err)
		return
	}
	defer file.Close()

	rows, err := inventory.ReadSalesCSV(file)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.Engine.ImportSales(r.Context(), rows)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	outcomes := make([]RowOutcomeDTO, len(result.Outcomes))
	for i, o := range result.Outcomes {
		outcomes[i] = RowOutcomeDTO{Line: o.Line, ProductID: o.ProductID, Status: string(o.Status)}
	}
	writeJSON(w, http.StatusOK, ImportResponse{Inserted: result.Inserted, Outcomes: outcomes})
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// Summary returns the dashboard headline aggregates.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	summary, err := h.Reports.Summary(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RevenueOverTime returns revenue grouped by calendar date, ascending.
func (h *Handler) RevenueOverTime(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	points, err := h.Reports.RevenueOverTime(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// SalesByProduct returns units and revenue per product, top sellers first.
func (h *Handler) SalesByProduct(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	out, err := h.Reports.SalesByProduct(r.Context(), f, f.Limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// RevenueByCategory returns revenue per product category, descending.
func (h *Handler) RevenueByCategory(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseFilters(w, r)
	if !ok {
		return
	}

	out, err := h.Reports.RevenueByCategory(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

// parseFilters reads the shared filter vocabulary from the query string.
// Malformed dates and product ids are treated as absent; a malformed limit is
// a validation failure (fail fast, never a silent zero).
func (h *Handler) parseFilters(w http.ResponseWriter, r *http.Request) (query.Filters, bool) {
	q := r.URL.Query()
	f := query.Filters{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}

	if s := q.Get("startDate"); s != "" && query.ValidDate(s) {
		f.StartDate = s
	}
	if s := q.Get("endDate"); s != "" && query.ValidDate(s) {
		f.EndDate = s
	}
	if s := q.Get("productId"); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			f.ProductID = id
		}
	}

	limit, err := query.ParseLimit(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return query.Filters{}, false
	}
	f.Limit = limit

	return f, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), nil)
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		// Unexpected storage failure: rolled back upstream, opaque to callers.
		h.log.Error().Err(err).Msg("storage failure")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
