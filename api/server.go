/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Movement routes
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Post("/", h.CreateMovement)
			r.Get("/{id}", h.GetMovement)
			r.Put("/{id}", h.UpdateMovement)
			r.Delete("/{id}", h.DeleteMovement)
			r.Post("/{id}/pay", h.MarkPaid)
			r.Post("/{id}/cancel", h.MarkCanceled)
			r.Post("/{id}/revert", h.RevertToPending)
		})

		// Fact ingestion routes
		r.Route("/facts", func(r chi.Router) {
			r.Post("/collect", h.Collect)
			r.Post("/post", h.PostDirect)
		})

		// Staging routes
		r.Route("/pending", func(r chi.Router) {
			r.Get("/", h.ListPending)
			r.Patch("/{id}/selected", h.SetSelected)
			r.Post("/promote", h.Promote)
			r.Delete("/processed", h.PurgeProcessed)
		})

		// Reporting routes
		r.Get("/balance", h.GetBalance)
		r.Put("/balance/initial", h.SetInitialBalance)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/aggregate", h.GetAggregate)
			r.Get("/categories", h.GetCategoryDistribution)
			r.Get("/monthly", h.GetMonthlySeries)
		})
		r.Get("/categories", h.GetCategories)
	})

	return r
}
