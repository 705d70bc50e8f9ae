// Package handler implements the hub's HTTP surface: node
// registration and heartbeat, task submission, node listing, and
// status/health reporting. Shaped on the teacher's
// internal/apiserver/handler package — one handler struct per
// resource area, constructed with the state it reads/writes, a shared
// writeJSON helper.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/exostack/exostack/internal/hub/auditlog"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/idgen"
	"github.com/exostack/exostack/internal/hub/registry"
	"github.com/exostack/exostack/internal/wire"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// NodeHandler handles node registration, heartbeat, and listing.
type NodeHandler struct {
	Registry *registry.Registry
}

// NewNodeHandler builds a NodeHandler.
func NewNodeHandler(reg *registry.Registry) *NodeHandler {
	return &NodeHandler{Registry: reg}
}

// Register handles POST /nodes/register.
func (h *NodeHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	node := h.Registry.Register(req)
	writeJSON(w, http.StatusOK, map[string]any{"status": "registered", "id": node.ID})
}

// Heartbeat handles POST /nodes/{id}/heartbeat. Returns 404 if the id
// is unknown so the agent re-registers (spec.md §6).
func (h *NodeHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req wire.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.Registry.UpdateHeartbeat(id, req); err != nil {
		writeError(w, http.StatusNotFound, "unknown node id: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// List handles GET /nodes.
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	nodes := h.Registry.GetAllNodes()
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "count": len(nodes)})
}

// Get handles GET /nodes/{id}.
func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := h.Registry.GetNode(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown node id: "+id)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// TaskHandler handles task submission and lookup.
type TaskHandler struct {
	Registry *registry.Registry
}

// NewTaskHandler builds a TaskHandler.
func NewTaskHandler(reg *registry.Registry) *TaskHandler {
	return &TaskHandler{Registry: reg}
}

type submitTaskRequest struct {
	TaskType string         `json:"task_type"`
	Priority int            `json:"priority"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Submit handles POST /tasks: validates the request, assigns a task
// id, and enqueues it as pending for the task queue driver to pick up.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TaskType == "" {
		writeError(w, http.StatusBadRequest, "task_type is required")
		return
	}

	task := h.Registry.SubmitTask(registry.Task{
		ID:        idgen.NewTaskID(),
		TaskType:  strings.ToLower(req.TaskType),
		Priority:  req.Priority,
		CreatedAt: time.Now(),
		Payload:   req.Payload,
	})
	writeJSON(w, http.StatusAccepted, task)
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := h.Registry.GetTask(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task id: "+id)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// StatusHandler reports aggregate hub health.
type StatusHandler struct {
	Registry *registry.Registry
	Cache    *cache.Cache
	AuditLog *auditlog.Log
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(reg *registry.Registry, c *cache.Cache, audit *auditlog.Log) *StatusHandler {
	return &StatusHandler{Registry: reg, Cache: c, AuditLog: audit}
}

// Health handles GET /status/health.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	counts := h.Registry.CountByStatus()
	pending := h.Registry.ListPendingTasks()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"nodes_online":       counts["online"],
		"nodes_offline":      counts["offline"],
		"readiness_cache_size": h.Cache.Size(),
		"queue_depth":        len(pending),
		"recent_events":      h.AuditLog.GetRecent(20),
	})
}
