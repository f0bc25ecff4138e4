/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/invoices/*   Invoice lifecycle, allocations, split families, billing
  /api/locks/*      Lease acquisition, release, inspection
  /api/undo/*       Single-step undo
  /api/scenarios/*  Demo scenarios
  /api/events       Server-sent change notifications
  /api/health       Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Post("/{id}/transition", h.Transition)
			r.Get("/{id}/allocations", h.GetAllocations)
			r.Put("/{id}/allocations", h.SetAllocations)
			r.Post("/{id}/split", h.Split)
			r.Post("/{id}/unsplit", h.Unsplit)
			r.Get("/{id}/family", h.Family)
			r.Post("/{id}/billing", h.FinalizeBilling)
		})

		// Lock routes
		r.Route("/locks", func(r chi.Router) {
			r.Post("/", h.AcquireLock)
			r.Post("/release", h.ReleaseLock)
			r.Get("/check", h.CheckLock)
		})

		// Undo routes
		r.Route("/undo", func(r chi.Router) {
			r.Get("/", h.AvailableUndo)
			r.Post("/", h.ExecuteUndo)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Change notification stream
		r.Get("/events", h.StreamEvents)

		// Health check
		r.Get("/health", h.Health)
	})

	return r
}
