package agentapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the agent's HTTP surface (C5), grounded on the
// teacher's internal/apiserver/router.go chi wiring.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", h.Health)
	r.Get("/health/detailed", h.HealthDetailed)
	r.Get("/ai-readiness", h.Readiness)
	r.Get("/ping", h.Ping)
	r.Get("/capabilities", h.CapabilitiesHandler)
	r.Post("/tasks/execute", h.Execute)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
