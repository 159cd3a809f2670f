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
  /api/vehicles/*      Fleet management and due computation
  /api/maintenance/*   Service order lifecycle
  /api/accounts/*      Shareholder ledger
  /api/audits/*        Consistency-check history
  /api/personnel/*     People
  /api/missions/*      Vehicle assignments
  /api/insurance/*     Coverage records
  /api/functions/*     Org tables
  /api/services/*      Org tables
  /api/notifications/* Per-person message records

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
		// Vehicle routes
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.CreateVehicle)
			r.Get("/due", h.ListDueVehicles)
			r.Get("/{id}", h.GetVehicle)
			r.Put("/{id}", h.UpdateVehicle)
			r.Delete("/{id}", h.DeleteVehicle)
			r.Get("/{id}/maintenance", h.ListVehicleMaintenance)
		})

		// Maintenance order routes
		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/", h.OpenOrder)
			r.Get("/scheduled", h.ListScheduled)
			r.Post("/{id}/close", h.CloseOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		// Account and ledger routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/movements", h.ListMovements)
			r.Post("/{id}/movements", h.PostMovement)
		})

		// Audit routes
		r.Route("/audits", func(r chi.Router) {
			r.Get("/", h.ListAudits)
			r.Post("/run", h.RunAudit)
		})

		// Personnel routes
		r.Route("/personnel", func(r chi.Router) {
			r.Get("/", h.ListPersonnel)
			r.Post("/", h.CreatePersonnel)
		})

		// Mission routes
		r.Route("/missions", func(r chi.Router) {
			r.Get("/", h.ListMissions)
			r.Post("/", h.CreateMission)
			r.Delete("/{id}", h.DeleteMission)
		})

		// Insurance routes
		r.Route("/insurance", func(r chi.Router) {
			r.Get("/", h.ListInsurancePolicies)
			r.Post("/", h.CreateInsurancePolicy)
			r.Delete("/{id}", h.DeleteInsurancePolicy)
		})

		// Org tables
		r.Route("/functions", func(r chi.Router) {
			r.Get("/", h.ListFunctions)
			r.Post("/", h.CreateFunction)
		})
		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.ListServices)
			r.Post("/", h.CreateService)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/", h.CreateNotification)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})
	})

	return r
}
