/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /healthz              Store reachability
  /api/trackers/*       Resource, client and sub-account views
  /api/bonus/*          Weekly bonus eligibility
  /api/holidays/*       Holiday maintenance
  /api/scenarios/*      Demo scenarios (dev only)
  /                     Endpoint index

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

// DefaultAllowedOrigins are used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Tracker views
		r.Route("/trackers", func(r chi.Router) {
			r.Get("/resources", h.GetResourceTracker)
			r.Get("/clients", h.GetClientTracker)
			r.Get("/accounts", h.GetAccountTracker)
		})

		// Bonus routes
		r.Route("/bonus", func(r chi.Router) {
			r.Get("/weekly", h.GetWeeklyBonus)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Capacity Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Capacity Engine API</h1>
<p>Load a demo with <code>POST /api/scenarios/load {"scenario_id": "presidents-day"}</code>.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/trackers/resources">/api/trackers/resources</a> - Resource tracker</li>
<li><a href="/api/trackers/clients">/api/trackers/clients</a> - Client tracker</li>
<li><a href="/api/trackers/accounts">/api/trackers/accounts</a> - Sub-account tracker</li>
<li><a href="/api/bonus/weekly">/api/bonus/weekly</a> - Weekly bonus eligibility</li>
<li><a href="/api/holidays">/api/holidays</a> - Holidays</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
