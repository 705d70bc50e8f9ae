package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/exostack/exostack/internal/hub/auditlog"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/registry"
	"github.com/exostack/exostack/internal/wire"
)

// withURLParam attaches a chi URL param the way the router would, so
// handlers that call chi.URLParam can be exercised directly with
// httptest without standing up a full router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestNodeRegisterRequiresID(t *testing.T) {
	h := NewNodeHandler(registry.New())
	body, _ := json.Marshal(wire.RegisterRequest{Host: "10.0.0.1"})
	req := httptest.NewRequest(http.MethodPost, "/nodes/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rec.Code)
	}
}

func TestNodeRegisterThenList(t *testing.T) {
	reg := registry.New()
	h := NewNodeHandler(reg)
	body, _ := json.Marshal(wire.RegisterRequest{ID: "node-1", Host: "10.0.0.1", Port: 8090})
	req := httptest.NewRequest(http.MethodPost, "/nodes/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	listRec := httptest.NewRecorder()
	h.List(listRec, listReq)

	var resp map[string]any
	json.Unmarshal(listRec.Body.Bytes(), &resp)
	if resp["count"].(float64) != 1 {
		t.Fatalf("expected 1 registered node, got %v", resp["count"])
	}
}

func TestHeartbeatUnknownNodeReturns404(t *testing.T) {
	reg := registry.New()
	h := NewNodeHandler(reg)

	body, _ := json.Marshal(wire.HeartbeatRequest{})
	req := httptest.NewRequest(http.MethodPost, "/nodes/ghost/heartbeat", bytes.NewReader(body))
	req = withURLParam(req, "id", "ghost")
	rec := httptest.NewRecorder()

	h.Heartbeat(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown node, got %d", rec.Code)
	}
}

func TestTaskSubmitRequiresTaskType(t *testing.T) {
	h := NewTaskHandler(registry.New())
	body, _ := json.Marshal(map[string]any{"priority": 5})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing task_type, got %d", rec.Code)
	}
}

func TestTaskSubmitAssignsIDAndEnqueues(t *testing.T) {
	reg := registry.New()
	h := NewTaskHandler(reg)
	body, _ := json.Marshal(map[string]any{"task_type": "inference", "priority": 5})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var task registry.Task
	json.Unmarshal(rec.Body.Bytes(), &task)
	if task.ID == "" {
		t.Fatal("expected a generated task id")
	}

	pending := reg.ListPendingTasks()
	if len(pending) != 1 || pending[0].ID != task.ID {
		t.Fatalf("expected submitted task to be pending, got %+v", pending)
	}
}

func TestStatusHealthReportsCountsAndEvents(t *testing.T) {
	reg := registry.New()
	reg.Register(wire.RegisterRequest{ID: "node-1"})

	c := cache.New(0)
	audit := auditlog.New(10)
	audit.Record("assign", "t1", "node-1", "ok")

	h := NewStatusHandler(reg, c, audit)
	req := httptest.NewRequest(http.MethodGet, "/status/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["nodes_online"].(float64) != 1 {
		t.Fatalf("expected 1 online node, got %v", resp["nodes_online"])
	}
	events := resp["recent_events"].([]any)
	if len(events) != 1 {
		t.Fatalf("expected 1 recent event, got %d", len(events))
	}
}
