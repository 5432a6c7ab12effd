/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Tenant:     X-Organization-ID / X-User-ID into the request context
                 (all /api routes except organization creation)

ROUTE GROUPS:
  /api/organizations       Tenant bootstrap
  /api/products/*          Catalog, stock, instances, batches
  /api/transactions/*      Ledger
  /api/clients             Clients
  /api/purchase-orders/*   Purchase orders
  /api/dashboard           Totals
  /api/audit               Audit history
  /metrics                 Prometheus
  /healthz                 Liveness

SECURITY NOTE:
  Identity headers are trusted as-is. Authentication happens upstream.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderOrganization, HeaderUser},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/organizations", h.CreateOrganization)

		r.Group(func(r chi.Router) {
			r.Use(Tenant)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/{id}", h.GetProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Get("/{id}/stock", h.GetStock)
				r.Get("/{id}/instances", h.ListInstances)
				r.Get("/{id}/instances/{serial}", h.GetInstance)
				r.Get("/{id}/batches", h.ListBatches)
				r.Post("/{id}/batches", h.CreateBatch)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.RecordTransaction)
				r.Get("/{id}", h.GetTransaction)
				r.Patch("/{id}", h.EditTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.ListClients)
				r.Post("/", h.CreateClient)
			})

			r.Route("/purchase-orders", func(r chi.Router) {
				r.Get("/", h.ListPurchaseOrders)
				r.Post("/", h.CreatePurchaseOrder)
				r.Get("/{id}", h.GetPurchaseOrder)
				r.Post("/{id}/open", h.OpenPurchaseOrder)
				r.Post("/{id}/receive", h.ReceivePurchaseOrder)
				r.Post("/{id}/cancel", h.CancelPurchaseOrder)
			})

			r.Get("/dashboard", h.Dashboard)
			r.Get("/audit", h.ListAudit)
		})
	})

	return r
}
