// Package metrics exposes the Prometheus counters/gauges/histograms
// for both cmd/hub and cmd/agent, grounded on the teacher's
// internal/metrics/prometheus_exporter.go package-level promauto
// pattern (one package, exported handles, no per-request
// registration).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hub: registry (C7)
	RegistryNodesByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "exostack",
		Name:      "hub_registry_nodes",
		Help:      "Number of registered nodes by status",
	}, []string{"status"})

	RegistryOfflineSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_registry_offline_sweeps_total",
		Help:      "Total number of nodes marked offline by the heartbeat-timeout sweep",
	})

	// Hub: readiness cache (C8)
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_readiness_cache_hits_total",
		Help:      "Total readiness cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_readiness_cache_misses_total",
		Help:      "Total readiness cache misses (stale or absent entry)",
	})

	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exostack",
		Name:      "hub_readiness_cache_size",
		Help:      "Current number of entries in the readiness cache",
	})

	// Hub: scheduler (C9)
	TasksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_tasks_scheduled_total",
		Help:      "Total tasks dispatched to a node",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_tasks_completed_total",
		Help:      "Total tasks that completed successfully",
	})

	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_tasks_failed_total",
		Help:      "Total tasks that failed during execution",
	})

	TasksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_tasks_rejected_total",
		Help:      "Total tasks rejected by the agent (not ready) or by transport error",
	})

	TasksNoCandidate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_tasks_no_candidate_total",
		Help:      "Total scheduling attempts that found no suitable node",
	})

	DispatchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_dispatch_fallbacks_total",
		Help:      "Total dispatches that used the fallback (no candidate met all requirements) path",
	})

	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exostack",
		Name:      "hub_dispatch_latency_seconds",
		Help:      "End-to-end latency of a scheduler dispatch attempt, including the agent round-trip",
		Buckets:   prometheus.DefBuckets,
	})

	// Hub: breaker (§4.11)
	BreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "hub_breaker_trips_total",
		Help:      "Total times a per-node failure breaker tripped",
	})

	// Agent: probes/readiness (C1-C4)
	AgentReadinessScore = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exostack",
		Name:      "agent_readiness_score",
		Help:      "Most recent AI-readiness score computed by this agent",
	})

	AgentReadyForAI = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exostack",
		Name:      "agent_ready_for_ai",
		Help:      "1 if the agent is currently ready_for_ai, else 0",
	})

	// Agent: lifecycle loop (C6)
	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "agent_heartbeats_sent_total",
		Help:      "Total heartbeats successfully acknowledged by the hub",
	})

	HeartbeatsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "agent_heartbeats_failed_total",
		Help:      "Total heartbeat attempts that failed or timed out",
	})

	Reregistrations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "agent_reregistrations_total",
		Help:      "Total times the agent re-registered after consecutive heartbeat failures",
	})

	// Agent: execute endpoint (C5)
	TasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exostack",
		Name:      "agent_tasks_executed_total",
		Help:      "Total tasks handled by the execute endpoint, by outcome",
	}, []string{"status"}) // completed|failed|rejected
)
