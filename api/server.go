/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions. This
  is the wiring layer between URLs and handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request for tracing
  2. RequestLogger: structured request logging via slog
  3. Recoverer:  panic recovery (500 instead of crash)
  4. CORS:       cross-origin requests for a future UI

ROUTE GROUPS:
  /api/donors/*          donor registration and lookup
  /api/donations/*       donation ingestion and queries
  /api/reimbursements/*  reimbursement processing and recovery
  /api/allocations/*     dry-run preview
  /api/summary           vault totals
  /api/scenarios/*       demo data loaders

SECURITY NOTE:
  No authentication middleware. The service is expected to sit behind the
  surrounding system's gateway.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/donors", func(r chi.Router) {
			r.Get("/", h.ListDonors)
			r.Post("/", h.RegisterDonor)
			r.Get("/{email}", h.GetDonor)
		})

		r.Route("/donations", func(r chi.Router) {
			r.Get("/", h.ListDonations)
			r.Post("/", h.RecordDonation)
		})

		r.Route("/reimbursements", func(r chi.Router) {
			r.Get("/", h.ListReimbursements)
			r.Post("/", h.ProcessReimbursement)
			r.Post("/{id}/reapply", h.ReapplyReimbursement)
		})

		r.Route("/allocations", func(r chi.Router) {
			r.Post("/preview", h.PreviewAllocation)
		})

		r.Get("/summary", h.GetSummary)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
