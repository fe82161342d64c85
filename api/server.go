/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/clubs/*        Club activity reads and workflow writes
  /api/memberships/*  Member activity reads and recomputation
  /api/wallets/*      Balances and ledgers
  /api/admin/*        Bulk recomputation
  /api/ranking, /api/trending, /api/compare, /api/policies

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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Club routes
		r.Route("/clubs", func(r chi.Router) {
			r.Get("/", h.ListClubs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/activity", h.GetClubActivity)
				r.Get("/members", h.GetClubMembers)
				r.Get("/history", h.GetHistory)
				r.Get("/events", h.GetEventContributions)
				r.Post("/recalc", h.RecalcClub)
				r.Post("/lock", h.LockMonth)
				r.Post("/approve", h.ApproveMonth)
				r.Post("/distribute", h.Distribute)
				r.Post("/reset", h.ResetMonth)
			})
		})

		// Membership routes
		r.Route("/memberships/{id}", func(r chi.Router) {
			r.Get("/activity", h.GetMemberActivity)
			r.Post("/recalc", h.RecalcMember)
		})

		// Cross-club reads
		r.Get("/ranking", h.GetRanking)
		r.Get("/trending", h.GetTrending)
		r.Get("/compare", h.GetComparison)
		r.Get("/policies", h.ListPolicies)

		// Wallet routes
		r.Route("/wallets/{kind}/{id}", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Get("/transactions", h.GetWalletTransactions)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recalc", h.RecalcAll)
		})
	})

	return r
}
