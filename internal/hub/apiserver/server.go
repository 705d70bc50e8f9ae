package apiserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/exostack/exostack/internal/hub/auditlog"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/registry"
)

// NewServer builds the hub's HTTP server, verbatim teacher timeout
// defaults (10s/30s/120s).
func NewServer(address string, port int, reg *registry.Registry, c *cache.Cache, audit *auditlog.Log) *http.Server {
	router := NewRouter(reg, c, audit)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", address, port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
