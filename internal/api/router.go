// Package api wires the HTTP surface (§6): bearer-JWT gated CRUD over
// alerts, automations, and scheduled reports, job lifecycle management, and
// a public/HMAC-gated webhook endpoint, all backed by the Handlers bundle
// assembled at process startup rather than package-level singletons.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/adcontrol/internal/auth"
	"github.com/ignite/adcontrol/internal/metrics"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
)

// NewRouter builds the full chi.Mux for the API server binary.
func NewRouter(h *Handlers, issuer *auth.Issuer, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	// Webhook callbacks authenticate themselves (HMAC / verify token), not
	// through the bearer middleware every other route below requires.
	r.Route("/api/webhooks/meta", func(r chi.Router) {
		r.Get("/", h.WebhookChallenge)
		r.Post("/", h.WebhookCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(issuer))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/export-report/{recipe_id}", h.EnqueueExport)
			r.Post("/analyze-report/{recipe_id}", h.EnqueueAnalyze)
			r.Get("/{job_id}", h.GetJob)
			r.Get("/{job_id}/download", h.DownloadJob)
			r.Get("/{job_id}/pdf", h.JobPDF)
			r.With(auth.RequireRole(auth.RoleManager)).Delete("/{job_id}", h.DeleteJob)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", h.ListRecipes)
			r.With(auth.RequireRole(auth.RoleManager)).Post("/", h.CreateRecipe)
			r.Get("/{id}", h.GetRecipe)
			r.With(auth.RequireRole(auth.RoleManager)).Delete("/{id}", h.DeleteRecipe)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.ListAlertRules)
				r.With(auth.RequireRole(auth.RoleManager)).Post("/", h.CreateAlertRule)
				r.Get("/{id}", h.GetAlertRule)
				r.With(auth.RequireRole(auth.RoleManager)).Put("/{id}", h.UpdateAlertRule)
				r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/{id}", h.DeleteAlertRule)
				r.With(auth.RequireRole(auth.RoleManager)).Post("/{id}/toggle", h.ToggleAlertRule)
			})
			r.Post("/test/{id}", h.TestAlertRule)
			r.With(auth.RequireRole(auth.RoleManager)).Post("/check-all", h.CheckAllAlerts)
		})

		r.Route("/automation", func(r chi.Router) {
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.ListAutomationRules)
				r.With(auth.RequireRole(auth.RoleManager)).Post("/", h.CreateAutomationRule)
				r.Get("/{id}", h.GetAutomationRule)
				r.With(auth.RequireRole(auth.RoleManager)).Put("/{id}", h.UpdateAutomationRule)
				r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/{id}", h.DeleteAutomationRule)
				r.With(auth.RequireRole(auth.RoleManager)).Post("/{id}/run", h.RunAutomationRule)
			})
		})

		r.Route("/scheduled-reports", func(r chi.Router) {
			r.Get("/", h.ListScheduledReports)
			r.With(auth.RequireRole(auth.RoleManager)).Post("/", h.CreateScheduledReport)
			r.Get("/{id}", h.GetScheduledReport)
			r.With(auth.RequireRole(auth.RoleManager)).Put("/{id}", h.UpdateScheduledReport)
			r.With(auth.RequireRole(auth.RoleManager)).Delete("/{id}", h.DeleteScheduledReport)
			r.With(auth.RequireRole(auth.RoleManager)).Post("/{id}/run-now", h.RunScheduledReportNow)
		})

		r.Route("/ads-library", func(r chi.Router) {
			r.Get("/search", h.SearchAdsLibrary)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.With(auth.RequireRole(auth.RoleAdmin)).Put("/{key}", h.SetSetting)
		})
	})

	return r
}

// HealthCheck reports process liveness; it deliberately does not probe the
// database so a momentarily slow Postgres does not flap a load balancer's
// health check.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
