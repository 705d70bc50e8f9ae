// Package lifecycle implements the agent lifecycle loop (C6):
// register, heartbeat on a fixed cadence, and re-register after
// consecutive heartbeat failures. One cooperative ticker loop per
// spec.md's Design Notes ("replace background threads plus a polling
// loop with one cooperative task per loop").
package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/exostack/exostack/internal/agentapi"
	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/metrics"
	"github.com/exostack/exostack/internal/readiness"
	"github.com/exostack/exostack/internal/wire"
)

// Loop drives registration and heartbeat against the hub.
type Loop struct {
	AgentID string
	Host    string
	Port    int
	HubURL  string

	Evaluator *readiness.Evaluator
	Cfg       config.LifecycleConfig
	Logger    *slog.Logger

	client *http.Client

	consecutiveFailures int
}

// New builds a Loop.
func New(agentID, host string, port int, hubURL string, evaluator *readiness.Evaluator, cfg config.LifecycleConfig, logger *slog.Logger) *Loop {
	return &Loop{
		AgentID:   agentID,
		Host:      host,
		Port:      port,
		HubURL:    hubURL,
		Evaluator: evaluator,
		Cfg:       cfg,
		Logger:    logger,
		client:    &http.Client{},
	}
}

// RegisterWithRetry attempts registration up to attempts times with
// backoff between tries, for use at startup (§6: "exit code 1 on
// registration failure that exceeded startup retry budget").
func (l *Loop) RegisterWithRetry(ctx context.Context, attempts int, backoff time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := l.register(ctx); err != nil {
			lastErr = err
			l.Logger.Warn("registration attempt failed", "attempt", i+1, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("registration failed after %d attempts: %w", attempts, lastErr)
}

func (l *Loop) register(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.Cfg.RegisterTimeout)
	defer cancel()

	snap, err := l.Evaluator.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluating readiness for registration: %w", err)
	}

	req := wire.RegisterRequest{
		ID:                 l.AgentID,
		Host:               l.Host,
		Port:               l.Port,
		Capabilities:       agentapi.Capabilities,
		MaxConcurrentTasks: snap.ComputeLimits.MaxConcurrentTasks,
		ReadyForAI:         snap.ReadyForAI,
		ReadinessScore:     snap.ReadinessScore,
		GPUAvailable:       snap.CurrentResources.GPUAvailable,
		PowerState:         snap.PowerState,
	}

	return l.post(ctx, "/nodes/register", req)
}

// Reregister performs a full re-registration. tick calls it once
// Cfg.MaxConsecutiveFailures consecutive heartbeats have failed; an
// unknown-node 404 counts as one such failure and does not trigger an
// immediate re-registration on its own.
func (l *Loop) Reregister(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.Cfg.RegisterTimeout)
	defer cancel()
	if err := l.register(ctx); err != nil {
		return err
	}
	metrics.Reregistrations.Inc()
	l.consecutiveFailures = 0
	return nil
}

func (l *Loop) heartbeat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snap, err := l.Evaluator.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluating readiness for heartbeat: %w", err)
	}

	req := wire.HeartbeatRequest{
		Timestamp:        time.Now(),
		ReadyForAI:       snap.ReadyForAI,
		ReadinessScore:   snap.ReadinessScore,
		IdleState:        snap.IdleState,
		PowerState:       snap.PowerState,
		CurrentResources: snap.CurrentResources,
		ComputeLimits:    snap.ComputeLimits,
		HealthStatus:     healthStatus(snap.CurrentResources),
	}

	return l.post(ctx, fmt.Sprintf("/nodes/%s/heartbeat", l.AgentID), req)
}

func healthStatus(res wire.CurrentResources) string {
	if res.CPUUsagePercent > 90 || res.MemoryUsagePercent > 90 {
		return "critical"
	}
	if res.CPUUsagePercent > 70 || res.MemoryUsagePercent > 70 {
		return "warning"
	}
	return "healthy"
}

func (l *Loop) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.HubURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling hub %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("hub does not know this node (404) at %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hub returned status %d for %s", resp.StatusCode, path)
	}
	return nil
}

// Run is the lifecycle loop's main body: register once (fatal on
// exhausted retry budget), then heartbeat on Cfg.HeartbeatInterval
// until ctx is cancelled, re-registering after
// Cfg.MaxConsecutiveFailures consecutive heartbeat failures.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.RegisterWithRetry(ctx, 3, 2*time.Second); err != nil {
		return fmt.Errorf("startup registration: %w", err)
	}
	l.Logger.Info("agent registered with hub", "agent_id", l.AgentID, "hub_url", l.HubURL)

	ticker := time.NewTicker(l.Cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Logger.Info("lifecycle loop shutting down")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if err := l.heartbeat(ctx); err != nil {
		l.consecutiveFailures++
		metrics.HeartbeatsFailed.Inc()
		l.Logger.Debug("heartbeat failed", "consecutive_failures", l.consecutiveFailures, "error", err)

		if l.consecutiveFailures >= l.Cfg.MaxConsecutiveFailures {
			l.Logger.Warn("consecutive heartbeat failures reached threshold, re-registering",
				"failures", l.consecutiveFailures)
			if err := l.Reregister(ctx); err != nil {
				l.Logger.Error("re-registration failed", "error", err)
			}
		}
		return
	}

	l.consecutiveFailures = 0
	metrics.HeartbeatsSent.Inc()
}
