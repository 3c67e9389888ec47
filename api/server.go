/*
server.go - Router and middleware wiring

MIDDLEWARE STACK:
  1. RequestID:  unique id per request, echoed in logs
  2. requestLogger: one structured line per request (zerolog)
  3. Recoverer:  panic -> 500 instead of crash
  4. metricsMiddleware: Prometheus counters/histograms per route
  5. CORS:       configured origins for the dashboard frontend

Everything under /api except /api/auth/login requires a bearer token.
/healthz and /metrics are unauthenticated.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter creates the router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Authenticated surface
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/meta/categories", h.ListCategories)
				r.Get("/{id}", h.GetProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.ListSales)
				r.Post("/", h.CreateSale)
				r.Post("/upload-csv", h.UploadSalesCSV)
				r.Delete("/{id}", h.DeleteSale)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/summary", h.Summary)
				r.Get("/revenue-over-time", h.RevenueOverTime)
				r.Get("/sales-by-product", h.SalesByProduct)
				r.Get("/revenue-by-category", h.RevenueByCategory)
			})
		})
	})

	return r
}
