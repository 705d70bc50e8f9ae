package agentapi

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer builds the agent's http.Server, matching the teacher's
// apiserver/server.go timeout defaults (10s read, 30s write, 120s
// idle) verbatim as sane HTTP server defaults.
func NewServer(address string, port int, h *Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", address, port),
		Handler:      NewRouter(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
