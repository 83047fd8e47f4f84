/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Identity:   Lifts the upstream-verified caller id into context

ROUTE GROUPS:
  /api/skills/*       Skill listings
  /api/connections/*  Learning-request lifecycle
  /api/credits/*      Balance and audit trail
  /api/matchmaking/*  Recommendations and search
  /health, /metrics   Operational endpoints

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
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdentityHeader},
		AllowCredentials: true,
	}))
	r.Use(Identity)

	r.Route("/api", func(r chi.Router) {
		r.Route("/skills", func(r chi.Router) {
			r.Get("/", h.ListSkills)
			r.Get("/{id}", h.GetSkill)
			r.Group(func(r chi.Router) {
				r.Use(RequireIdentity)
				r.Post("/", h.CreateSkill)
				r.Delete("/{id}", h.DeleteSkill)
			})
		})

		r.Route("/connections", func(r chi.Router) {
			r.Use(RequireIdentity)
			r.Post("/", h.CreateConnection)
			r.Get("/", h.ListConnections)
			r.Get("/{id}", h.GetConnection)
			r.Put("/{id}", h.UpdateConnection)
			r.Delete("/{id}", h.CancelConnection)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Use(RequireIdentity)
			r.Get("/balance", h.GetBalance)
			r.Get("/transactions", h.GetTransactions)
			r.Post("/grant", h.GrantCredits)
		})

		r.Route("/matchmaking", func(r chi.Router) {
			r.Get("/for-skill/{skillId}", h.FindMatches)
			r.Post("/search", h.SearchSkills)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
