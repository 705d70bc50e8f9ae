// Package agentapi implements the agent control endpoint (C5): health,
// ping, readiness, detailed health, capabilities, and execute. Shaped
// on the teacher's internal/apiserver/handler package (one handler
// struct per concern, shared writeJSON helper, explicit dependency
// injection through constructors).
package agentapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/exostack/exostack/internal/agent/history"
	"github.com/exostack/exostack/internal/agent/inference"
	"github.com/exostack/exostack/internal/metrics"
	"github.com/exostack/exostack/internal/probe"
	"github.com/exostack/exostack/internal/readiness"
	"github.com/exostack/exostack/internal/wire"
)

// Capabilities is the fixed capability set the agent advertises,
// matching spec.md §3's declared tag vocabulary.
var Capabilities = []string{
	"inference",
	"text-generation",
	"idle-detection",
	"power-management",
	"ai-compute-readiness",
}

// Handler wires the evaluator, inference engine, and task history
// into the HTTP surface of C5.
type Handler struct {
	AgentID   string
	Evaluator *readiness.Evaluator
	Engine    inference.Engine
	History   *history.History
	Resources *probe.ResourceProbe
	StartedAt time.Time
	Logger    *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(agentID string, evaluator *readiness.Evaluator, engine inference.Engine, hist *history.History, resources *probe.ResourceProbe, logger *slog.Logger) *Handler {
	return &Handler{
		AgentID:   agentID,
		Evaluator: evaluator,
		Engine:    engine,
		History:   hist,
		Resources: resources,
		StartedAt: time.Now(),
		Logger:    logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": h.AgentID})
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "server_time": time.Now()})
}

// Readiness handles GET /ai-readiness.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Evaluator.Evaluate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	metrics.AgentReadinessScore.Set(float64(snap.ReadinessScore))
	if snap.ReadyForAI {
		metrics.AgentReadyForAI.Set(1)
	} else {
		metrics.AgentReadyForAI.Set(0)
	}
	writeJSON(w, http.StatusOK, snap)
}

// HealthDetailed handles GET /health/detailed.
func (h *Handler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Evaluator.Evaluate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	stats := h.History.Snapshot()
	facts := h.Resources.SystemFacts()

	resp := wire.HealthDetailedResponse{
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(h.StartedAt).Seconds(),
		System: wire.SystemFacts{
			CPUCount:     facts.CPUCount,
			MemoryTotal:  facts.MemoryTotal,
			BootTimeUnix: facts.BootTimeUnix,
		},
		TaskStats: wire.TaskStats{
			TotalTasks:     stats.TotalTasks,
			CompletedTasks: stats.CompletedTasks,
			FailedTasks:    stats.FailedTasks,
			AvgDuration:    stats.AvgDuration,
			SuccessRate:    stats.SuccessRate,
		},
		Status:    overallStatus(snap.CurrentResources),
		Readiness: snap,
	}
	writeJSON(w, http.StatusOK, resp)
}

// overallStatus implements §4.5's health_detailed status derivation:
// critical above 90% cpu/mem, warning above 70%, else healthy.
func overallStatus(res wire.CurrentResources) string {
	if res.CPUUsagePercent > 90 || res.MemoryUsagePercent > 90 {
		return "critical"
	}
	if res.CPUUsagePercent > 70 || res.MemoryUsagePercent > 70 {
		return "warning"
	}
	return "healthy"
}

// CapabilitiesHandler handles GET /capabilities.
func (h *Handler) CapabilitiesHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Evaluator.Evaluate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, wire.CapabilitiesResponse{
		AgentID:            h.AgentID,
		Capabilities:       Capabilities,
		MaxConcurrentTasks: snap.ComputeLimits.MaxConcurrentTasks,
		ReadyForAI:         snap.ReadyForAI,
		ReadinessScore:     snap.ReadinessScore,
		GPUAvailable:       snap.CurrentResources.GPUAvailable,
		PowerState:         snap.PowerState,
	})
}

// Execute handles POST /tasks/execute, implementing the §4.5 execute
// contract: re-evaluate readiness synchronously, reject if not ready,
// otherwise invoke the inference collaborator and record the outcome.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req wire.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed task body: " + err.Error()})
		return
	}

	snap, err := h.Evaluator.Evaluate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if !snap.ReadyForAI {
		metrics.TasksExecuted.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusOK, wire.ExecuteResponse{
			Status:          "rejected",
			Error:           "system not ready for AI compute",
			ReadinessScore:  snap.ReadinessScore,
			Recommendations: snap.Recommendations,
		})
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 55*time.Second)
	defer cancel()

	result, execErr := h.Engine.Execute(ctx, req.Task, snap.ComputeLimits)
	duration := time.Since(start).Seconds()

	if execErr != nil {
		h.History.Record(req.Task.ID, "failed", duration)
		metrics.TasksExecuted.WithLabelValues("failed").Inc()
		h.Logger.Warn("task execution failed", "task_id", req.Task.ID, "error", execErr)
		writeJSON(w, http.StatusOK, wire.ExecuteResponse{
			Status:          "failed",
			Error:           execErr.Error(),
			DurationSeconds: duration,
		})
		return
	}

	h.History.Record(req.Task.ID, "completed", duration)
	metrics.TasksExecuted.WithLabelValues("completed").Inc()
	limits := snap.ComputeLimits
	writeJSON(w, http.StatusOK, wire.ExecuteResponse{
		Status:            "completed",
		Result:            result,
		DurationSeconds:   duration,
		ComputeLimitsUsed: &limits,
	})
}
