package lifecycle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/probe"
	"github.com/exostack/exostack/internal/readiness"
	"github.com/exostack/exostack/internal/wire"
)

type fakePower struct{}

func (fakePower) Sample() wire.PowerState { return wire.PowerState{PowerPlugged: true} }

type fakeActivity struct{}

func (fakeActivity) IsUserActive() bool { return false }

func testEvaluator(t *testing.T) *readiness.Evaluator {
	t.Helper()
	resourceProbe := probe.NewResourceProbe(t.TempDir())
	resourceProbe.SampleInterval = time.Millisecond
	cfg := config.ReadinessConfig{IdleMinSeconds: 0, IdleCPUThreshold: 100}
	return readiness.New(cfg, fakePower{}, fakeActivity{}, resourceProbe)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterWithRetrySucceeds(t *testing.T) {
	var registered atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/nodes/register" {
			registered.Store(true)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loop := New("agent-1", "127.0.0.1", 8090, srv.URL, testEvaluator(t), config.LifecycleConfig{RegisterTimeout: time.Second}, discardLogger())

	if err := loop.RegisterWithRetry(context.Background(), 3, time.Millisecond); err != nil {
		t.Fatalf("RegisterWithRetry: %v", err)
	}
	if !registered.Load() {
		t.Fatal("expected the hub to observe a registration call")
	}
}

func TestRegisterWithRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	loop := New("agent-1", "127.0.0.1", 8090, srv.URL, testEvaluator(t), config.LifecycleConfig{RegisterTimeout: time.Second}, discardLogger())

	if err := loop.RegisterWithRetry(context.Background(), 2, time.Millisecond); err == nil {
		t.Fatal("expected an error once the retry budget is exhausted")
	}
}

func TestTickReregistersAfterConsecutiveFailures(t *testing.T) {
	var heartbeats, registrations atomic.Int32
	heartbeatsShouldFail := atomic.Bool{}
	heartbeatsShouldFail.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nodes/register":
			registrations.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/nodes/agent-1/heartbeat":
			heartbeats.Add(1)
			if heartbeatsShouldFail.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := config.LifecycleConfig{RegisterTimeout: time.Second, MaxConsecutiveFailures: 2}
	loop := New("agent-1", "127.0.0.1", 8090, srv.URL, testEvaluator(t), cfg, discardLogger())

	ctx := context.Background()
	loop.tick(ctx)
	loop.tick(ctx)

	if registrations.Load() != 1 {
		t.Fatalf("expected exactly 1 re-registration after 2 consecutive heartbeat failures, got %d", registrations.Load())
	}
}

func TestPostReturns404ForUnknownNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loop := New("agent-1", "127.0.0.1", 8090, srv.URL, testEvaluator(t), config.LifecycleConfig{}, discardLogger())

	err := loop.post(context.Background(), "/nodes/agent-1/heartbeat", map[string]string{})
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestHeartbeatRequestMarshalsCleanly(t *testing.T) {
	// Sanity check that the wire types round-trip through JSON the way
	// the lifecycle loop and the hub expect.
	req := wire.HeartbeatRequest{ReadyForAI: true, ReadinessScore: 80}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out wire.HeartbeatRequest
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ReadinessScore != 80 {
		t.Fatalf("expected round-tripped score 80, got %d", out.ReadinessScore)
	}
}
