// Package apiserver wires the hub's chi router and http.Server,
// following the teacher's internal/apiserver package shape exactly:
// a NewRouter that builds per-resource handlers and mounts them under
// literal-before-parameterized routes, and a NewServer that wraps the
// router with the teacher's http.Server timeout defaults.
package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exostack/exostack/internal/hub/apiserver/handler"
	"github.com/exostack/exostack/internal/hub/auditlog"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/registry"
)

// NewRouter builds the hub's HTTP router.
func NewRouter(reg *registry.Registry, c *cache.Cache, audit *auditlog.Log) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	nodeHandler := handler.NewNodeHandler(reg)
	taskHandler := handler.NewTaskHandler(reg)
	statusHandler := handler.NewStatusHandler(reg, c, audit)

	r.Post("/nodes/register", nodeHandler.Register)
	r.Post("/nodes/{id}/heartbeat", nodeHandler.Heartbeat)
	r.Get("/nodes", nodeHandler.List)
	r.Get("/nodes/{id}", nodeHandler.Get)

	r.Post("/tasks", taskHandler.Submit)
	r.Get("/tasks/{id}", taskHandler.Get)

	r.Get("/status/health", statusHandler.Health)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
