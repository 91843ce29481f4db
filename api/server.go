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
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for the scheduling frontend

ROUTE GROUPS:
  /api/assignments/*    Batch check, listing, deletion
  /api/pto/*            PTO lifecycle (create, review, cascade, reconcile)
  /api/templates/*      Template expansion
  /api/history/*        Undo/redo
  /api/holidays         Holiday reference data
  /api/providers/*      Availability rules

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Assignment routes
		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/check", h.CheckBatch)
			r.Delete("/{id}", h.DeleteAssignment)
		})

		// PTO routes
		r.Route("/pto", func(r chi.Router) {
			r.Post("/", h.CreatePTO)
			r.Post("/cascade-delete", h.CascadeDeletePTO)
			r.Get("/reconcile", h.ReconcilePTO)
			r.Get("/leaves", h.ListLeaves)

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListPTORequests)
				r.Post("/", h.SubmitPTORequest)
				r.Post("/{id}/approve", h.ApprovePTORequest)
				r.Post("/{id}/deny", h.DenyPTORequest)
			})
		})

		// Template routes
		r.Route("/templates", func(r chi.Router) {
			r.Post("/{id}/apply", h.ApplyTemplate)
		})

		// Change history routes
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.ListHistory)
			r.Post("/{id}/undo", h.UndoChange)
			r.Post("/{id}/redo", h.RedoChange)
		})

		// Reference data routes
		r.Get("/holidays", h.ListHolidays)
		r.Get("/providers/{id}/rules", h.ListProviderRules)
	})

	return r
}
