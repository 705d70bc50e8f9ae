// Package readiness implements the AI-readiness scoring state machine
// (C4): idle-session tracking plus the composite 0-100 score built
// from idle state, power state, and current resource load.
package readiness

import (
	"context"
	"sync"
	"time"

	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/probe"
	"github.com/exostack/exostack/internal/wire"
)

// PowerSampler reports the current power/battery state (C1).
type PowerSampler interface {
	Sample() wire.PowerState
}

// ActivitySampler reports whether the user is currently active (C2).
type ActivitySampler interface {
	IsUserActive() bool
}

// ResourceSampler reports current CPU/memory load (C3). Sample may
// block for a sampling window and respects ctx cancellation.
type ResourceSampler interface {
	Sample(ctx context.Context) (wire.CurrentResources, error)
}

// Evaluator tracks idle-session state across calls and produces a
// ReadinessSnapshot on demand. It is safe for concurrent use; the
// lifecycle loop (C6) and the HTTP handlers (C5) may call Evaluate
// from different goroutines.
type Evaluator struct {
	mu sync.Mutex

	power    PowerSampler
	activity ActivitySampler
	resource ResourceSampler

	idleMinSeconds   float64
	idleCPUThreshold float64

	idleStart      time.Time
	currentlyIdle  bool
	lastActivityAt time.Time
}

// New builds an Evaluator from probes and readiness thresholds.
func New(cfg config.ReadinessConfig, power PowerSampler, activity ActivitySampler, resource ResourceSampler) *Evaluator {
	return &Evaluator{
		power:            power,
		activity:         activity,
		resource:         resource,
		idleMinSeconds:   cfg.IdleMinSeconds,
		idleCPUThreshold: cfg.IdleCPUThreshold,
		lastActivityAt:   time.Now(),
	}
}

// Evaluate samples the probes and returns a full readiness snapshot.
// It blocks for roughly one resource-probe sampling window.
func (e *Evaluator) Evaluate(ctx context.Context) (wire.ReadinessSnapshot, error) {
	resources, err := e.resource.Sample(ctx)
	if err != nil {
		return wire.ReadinessSnapshot{}, err
	}
	power := e.power.Sample()
	userActive := e.activity.IsUserActive()

	idle := e.advanceIdleState(userActive, resources.CPUUsagePercent, resources.MemoryUsagePercent)

	score := compositeScore(idle, power, resources)
	readyForAI := score >= 60 && !probe.ShouldThrottle(power)

	snapshot := wire.ReadinessSnapshot{
		ReadyForAI:       readyForAI,
		ReadinessScore:   score,
		IdleState:        idle,
		PowerState:       power,
		ComputeLimits:    probe.ComputeLimits(power),
		CurrentResources: resources,
		Recommendations:  recommendations(score, idle, power, resources),
	}
	return snapshot, nil
}

// advanceIdleState updates the idle-session state machine and
// returns the current IdleState. Mirrors the original detect_idle_state
// transitions: active input resets the clock; sustained low load past
// idleMinSeconds flips currentlyIdle; any non-low-load tick resets it.
func (e *Evaluator) advanceIdleState(userActive bool, cpuPct, memPct float64) wire.IdleState {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	lowLoad := cpuPct < e.idleCPUThreshold && memPct < 70

	switch {
	case userActive:
		e.lastActivityAt = now
		e.idleStart = time.Time{}
		e.currentlyIdle = false
	case lowLoad && !e.currentlyIdle:
		if e.idleStart.IsZero() {
			e.idleStart = now
		} else if now.Sub(e.idleStart).Seconds() > e.idleMinSeconds {
			e.currentlyIdle = true
		}
	case !lowLoad:
		e.idleStart = time.Time{}
		e.currentlyIdle = false
	}

	var duration float64
	if !e.idleStart.IsZero() {
		duration = now.Sub(e.idleStart).Seconds()
	}

	return wire.IdleState{
		IsIdle:              e.currentlyIdle,
		IdleDurationSeconds: duration,
		UserActive:          userActive,
		LastActivityAt:      e.lastActivityAt,
	}
}

// compositeScore implements the exact 0-100 scoring table: idle state
// contributes up to 40 points, power state up to 30, resource
// headroom up to 30.
func compositeScore(idle wire.IdleState, power wire.PowerState, res wire.CurrentResources) int {
	score := 0

	switch {
	case idle.IsIdle && idle.IdleDurationSeconds > 1800:
		score += 40
	case idle.IsIdle && idle.IdleDurationSeconds > 600:
		score += 30
	case idle.IsIdle:
		score += 20
	default:
		score += 5
	}

	switch {
	case !power.OnBattery:
		score += 30
	case power.BatteryLevelPercent > 80:
		score += 25
	case power.BatteryLevelPercent > 50:
		score += 15
	case power.BatteryLevelPercent > 20:
		score += 5
	}

	switch {
	case res.CPUUsagePercent < 20 && res.MemoryUsagePercent < 50:
		score += 30
	case res.CPUUsagePercent < 50 && res.MemoryUsagePercent < 70:
		score += 20
	case res.CPUUsagePercent < 80 && res.MemoryUsagePercent < 85:
		score += 10
	}

	return score
}

func recommendations(score int, idle wire.IdleState, power wire.PowerState, res wire.CurrentResources) []string {
	var recs []string

	switch {
	case score < 30:
		recs = append(recs, "System is busy - not ideal for AI compute")
	case score < 60:
		recs = append(recs, "System has limited availability - light AI tasks only")
	}

	switch {
	case !idle.IsIdle:
		recs = append(recs, "Wait for system to be idle for better performance")
	case idle.IdleDurationSeconds < 600:
		recs = append(recs, "System recently active - monitor for stability")
	}

	if power.OnBattery {
		switch {
		case power.BatteryLevelPercent < 20:
			recs = append(recs, "Critical battery level - avoid AI compute")
		case power.BatteryLevelPercent < 50:
			recs = append(recs, "Consider connecting to power for intensive tasks")
		}
	}

	if res.CPUUsagePercent > 80 {
		recs = append(recs, "High CPU usage - may impact AI task performance")
	}
	if res.MemoryUsagePercent > 85 {
		recs = append(recs, "High memory usage - may limit model size")
	}

	if len(recs) == 0 && score >= 60 {
		recs = append(recs, "System ready for AI compute tasks")
	}

	return recs
}
