package agentapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exostack/exostack/internal/agent/history"
	"github.com/exostack/exostack/internal/agent/inference"
	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/probe"
	"github.com/exostack/exostack/internal/readiness"
	"github.com/exostack/exostack/internal/wire"
)

type fakePower struct{ state wire.PowerState }

func (f fakePower) Sample() wire.PowerState { return f.state }

type fakeActivity struct{ active bool }

func (f fakeActivity) IsUserActive() bool { return f.active }

func newTestHandler(t *testing.T, ready bool) *Handler {
	t.Helper()
	var power fakePower
	if ready {
		power = fakePower{state: wire.PowerState{OnBattery: false, PowerPlugged: true}}
	} else {
		// Low battery, unplugged, and an active user: idle scores 5 and
		// power 0, so even the full 30 resource points from the empty
		// procfs leave the score at 35, and the battery throttles anyway.
		power = fakePower{state: wire.PowerState{OnBattery: true, BatteryLevelPercent: 10, PowerPlugged: false}}
	}
	activity := fakeActivity{active: !ready}

	resourceProbe := probe.NewResourceProbe(t.TempDir())
	resourceProbe.SampleInterval = time.Millisecond

	cfg := config.ReadinessConfig{IdleMinSeconds: 0, IdleCPUThreshold: 100}
	evaluator := readiness.New(cfg, power, activity, resourceProbe)

	hist := history.New(10)
	engine := &inference.SimulatedEngine{PerTaskWork: time.Millisecond}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewHandler("agent-1", evaluator, engine, hist, resourceProbe, logger)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["id"] != "agent-1" {
		t.Fatalf("expected id agent-1, got %v", body["id"])
	}
}

func TestReadinessEndpoint(t *testing.T) {
	h := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodGet, "/ai-readiness", nil)
	rec := httptest.NewRecorder()

	h.Readiness(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap wire.ReadinessSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if snap.ReadinessScore == 0 {
		t.Fatal("expected a nonzero readiness score on an idle, plugged-in system")
	}
}

func TestExecuteRejectsWhenNotReady(t *testing.T) {
	h := newTestHandler(t, false) // active user -> low idle score
	body, _ := json.Marshal(wire.ExecuteRequest{Task: wire.Task{ID: "t1", TaskType: "inference"}})
	req := httptest.NewRequest(http.MethodPost, "/tasks/execute", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Execute(rec, req)

	var resp wire.ExecuteResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "rejected" {
		t.Fatalf("expected rejected status on a not-ready system, got %q", resp.Status)
	}
}

func TestExecuteCompletesWhenReady(t *testing.T) {
	h := newTestHandler(t, true)
	body, _ := json.Marshal(wire.ExecuteRequest{Task: wire.Task{ID: "t1", TaskType: "inference"}})
	req := httptest.NewRequest(http.MethodPost, "/tasks/execute", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Execute(rec, req)

	var resp wire.ExecuteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "completed" {
		t.Fatalf("expected completed status on a ready system, got %q (body=%s)", resp.Status, rec.Body.String())
	}

	stats := h.History.Snapshot()
	if stats.TotalTasks != 1 || stats.CompletedTasks != 1 {
		t.Fatalf("expected history to record the completed task, got %+v", stats)
	}
}

func TestExecuteRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodPost, "/tasks/execute", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	h.Execute(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
