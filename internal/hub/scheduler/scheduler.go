// Package scheduler implements the hub's scheduling core (C9):
// candidate selection, the requirements filter with fallback, a
// transactional dispatch against the node registry, and interpreting
// the agent's response. Grounded on the teacher's
// internal/controller/costmonitor reconcile-and-act shape, generalized
// from "pick a node group to resize" to "pick a node to run a task
// on."
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/hub/advisor"
	"github.com/exostack/exostack/internal/hub/agentclient"
	"github.com/exostack/exostack/internal/hub/auditlog"
	"github.com/exostack/exostack/internal/hub/breaker"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/registry"
	"github.com/exostack/exostack/internal/hub/tasklock"
	"github.com/exostack/exostack/internal/metrics"
	"github.com/exostack/exostack/internal/wire"
)

// gpuTaskTypes names the task types that require gpu_available (spec.md §4.9).
var gpuTaskTypes = map[string]bool{
	"gpu_inference": true,
	"training":      true,
}

// Scheduler selects a node for each pending task and dispatches it.
type Scheduler struct {
	Registry    *registry.Registry
	Cache       *cache.Cache
	AgentClient *agentclient.Client
	Breaker     *breaker.Breaker
	TaskLock    *tasklock.TaskLock
	AuditLog    *auditlog.Log
	Advisor     *advisor.Advisor
	Cfg         config.SchedulerConfig
	Logger      *slog.Logger
}

// New builds a Scheduler.
func New(reg *registry.Registry, c *cache.Cache, client *agentclient.Client, br *breaker.Breaker,
	lock *tasklock.TaskLock, audit *auditlog.Log, adv *advisor.Advisor, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Registry:    reg,
		Cache:       c,
		AgentClient: client,
		Breaker:     br,
		TaskLock:    lock,
		AuditLog:    audit,
		Advisor:     adv,
		Cfg:         cfg,
		Logger:      logger,
	}
}

type candidate struct {
	node      registry.Node
	snapshot  wire.ReadinessSnapshot
	qualifies bool
}

// Dispatch attempts to schedule and dispatch a single pending task. It
// serializes on the task id via TaskLock so two concurrent queue-drain
// ticks can never double-dispatch the same task (§4.12, §5).
func (s *Scheduler) Dispatch(ctx context.Context, task registry.Task) {
	// One holder per dispatch attempt: TryLock lets a holder re-acquire
	// its own lock, so a shared holder name would never be refused.
	holder := fmt.Sprintf("scheduler-%d", time.Now().UnixNano())
	if !s.TaskLock.TryLock(task.ID, holder) {
		return
	}
	defer s.TaskLock.Unlock(task.ID, holder)

	start := time.Now()
	defer func() {
		metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	}()

	candidates := s.buildCandidates(ctx, task)
	node, usedFallback, ok := selectNode(candidates)
	if !ok {
		metrics.TasksNoCandidate.Inc()
		s.AuditLog.Record("reject", task.ID, "", "no candidate nodes available")
		s.Logger.Debug("no candidate for task", "task_id", task.ID)
		return
	}

	if usedFallback {
		metrics.DispatchFallbacks.Inc()
		if approved := s.checkAdvisor(ctx, task, node); !approved {
			s.AuditLog.Record("reject", task.ID, node.ID, "advisor vetoed fallback dispatch")
			return
		}
	}

	assigned, err := s.Registry.TryAssign(task.ID, node.ID)
	if err != nil {
		s.Logger.Warn("failed to assign task", "task_id", task.ID, "node_id", node.ID, "error", err)
		return
	}

	s.AuditLog.Record("assign", task.ID, node.ID, fmt.Sprintf("fallback=%t", usedFallback))
	metrics.TasksScheduled.Inc()

	s.executeDispatch(ctx, assigned, node, usedFallback)
}

// buildCandidates gathers a readiness snapshot for every online,
// non-breaker-tripped node, using the cache when fresh and fetching
// directly from the agent on a miss (spec.md §4.9: "cache-or-fetch").
func (s *Scheduler) buildCandidates(ctx context.Context, task registry.Task) []candidate {
	nodes := s.Registry.GetAllNodes()
	out := make([]candidate, 0, len(nodes))

	for _, n := range nodes {
		if n.Status != "online" {
			continue
		}
		if s.Breaker.IsTripped(n.ID) {
			continue
		}

		snap, ok := s.Cache.Get(n.ID)
		if ok {
			metrics.CacheHits.Inc()
		} else {
			metrics.CacheMisses.Inc()
			fetchCtx, cancel := context.WithTimeout(ctx, s.Cfg.ReadinessTimeout)
			fetched, err := s.AgentClient.FetchReadiness(fetchCtx, n.Host, n.Port)
			cancel()
			if err != nil {
				s.Logger.Debug("readiness fetch failed, excluding node from this round",
					"node_id", n.ID, "error", err)
				continue
			}
			s.Cache.Put(n.ID, fetched)
			snap = fetched
		}

		if !snap.ReadyForAI {
			// spec.md §4.9 step 1: candidates are online nodes with a
			// readiness snapshot AND ready_for_ai=true. A throttled or
			// low-scoring node never enters the candidate set at all,
			// so neither the requirements filter nor the fallback can
			// pick it.
			continue
		}

		requiresGPU := gpuTaskTypes[strings.ToLower(task.TaskType)]
		qualifies := snap.ReadinessScore >= s.Cfg.MinReadinessScore &&
			(!requiresGPU || snap.CurrentResources.GPUAvailable) &&
			n.CurrentLoad < n.MaxConcurrentTasks

		out = append(out, candidate{node: n, snapshot: snap, qualifies: qualifies})
	}
	return out
}

// selectNode picks the best qualifying candidate, sorted by
// (readiness_score desc, current_load asc, id asc). If none qualify,
// it falls back to the single highest-scoring candidate regardless of
// the requirements filter (spec.md §4.9 Fallback Behavior), signalling
// that with the second return value.
func selectNode(candidates []candidate) (registry.Node, bool, bool) {
	if len(candidates) == 0 {
		return registry.Node{}, false, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.snapshot.ReadinessScore != b.snapshot.ReadinessScore {
			return a.snapshot.ReadinessScore > b.snapshot.ReadinessScore
		}
		if a.node.CurrentLoad != b.node.CurrentLoad {
			return a.node.CurrentLoad < b.node.CurrentLoad
		}
		return a.node.ID < b.node.ID
	})

	for _, c := range candidates {
		if c.qualifies {
			return c.node, false, true
		}
	}
	return candidates[0].node, true, true
}

func (s *Scheduler) checkAdvisor(ctx context.Context, task registry.Task, node registry.Node) bool {
	if s.Advisor == nil {
		return true
	}
	verdict, err := s.Advisor.Approve(ctx, advisor.Request{
		TaskID:             task.ID,
		TaskType:           task.TaskType,
		Priority:           task.Priority,
		NodeID:             node.ID,
		ReadinessScore:     node.ReadinessScore,
		CurrentLoad:        node.CurrentLoad,
		MaxConcurrentTasks: node.MaxConcurrentTasks,
		GPUAvailable:       node.GPUAvailable,
		RequiresGPU:        gpuTaskTypes[strings.ToLower(task.TaskType)],
	})
	if err != nil {
		// Approve is designed to never return an error (fail-open
		// internally); this branch exists only to defend against a
		// future change to that contract.
		s.Logger.Warn("advisor call errored, approving by default", "task_id", task.ID, "error", err)
		return true
	}
	if !verdict.Approved {
		s.Logger.Info("advisor vetoed fallback dispatch", "task_id", task.ID, "node_id", node.ID, "reasoning", verdict.Reasoning)
	}
	return verdict.Approved
}

// executeDispatch calls the node's execute endpoint and resolves the
// task based on the agent's response or a transport error.
func (s *Scheduler) executeDispatch(ctx context.Context, task registry.Task, node registry.Node, usedFallback bool) {
	dispatchCtx, cancel := context.WithTimeout(ctx, s.Cfg.DispatchTimeout)
	defer cancel()

	req := wire.ExecuteRequest{
		Task: wire.Task{
			ID:        task.ID,
			TaskType:  task.TaskType,
			Priority:  task.Priority,
			CreatedAt: task.CreatedAt,
			Payload:   task.Payload,
		},
		AIComputeContext: &wire.AIComputeContext{
			ScoreSnapshot: wire.ReadinessSnapshot{
				ReadyForAI:     node.ReadyForAI,
				ReadinessScore: node.ReadinessScore,
			},
			ScheduledAt: time.Now(),
			PowerAware:  true,
		},
	}

	resp, err := s.AgentClient.Execute(dispatchCtx, node.Host, node.Port, req)
	if err != nil {
		s.Logger.Warn("dispatch transport error, reverting task to pending", "task_id", task.ID, "node_id", node.ID, "error", err)
		s.Registry.Revert(task.ID, node.ID)
		s.Cache.Evict(node.ID)
		s.Breaker.RecordFailure(node.ID)
		if s.Breaker.IsTripped(node.ID) {
			metrics.BreakerTrips.Inc()
		}
		metrics.TasksRejected.Inc()
		s.AuditLog.Record("reject", task.ID, node.ID, fmt.Sprintf("transport error: %v", err))
		return
	}

	switch resp.Status {
	case "completed":
		s.Registry.Finish(task.ID, node.ID, "completed")
		s.Breaker.RecordSuccess(node.ID)
		metrics.TasksCompleted.Inc()
		s.AuditLog.Record("assign", task.ID, node.ID, "completed")
	case "failed":
		s.Registry.Finish(task.ID, node.ID, "failed")
		s.Breaker.RecordSuccess(node.ID) // the dispatch itself succeeded; the task's own work failed
		metrics.TasksFailed.Inc()
		s.AuditLog.Record("assign", task.ID, node.ID, fmt.Sprintf("failed: %s", resp.Error))
	case "rejected":
		s.Registry.Revert(task.ID, node.ID)
		s.Cache.Evict(node.ID)
		metrics.TasksRejected.Inc()
		s.AuditLog.Record("reject", task.ID, node.ID, fmt.Sprintf("rejected by agent: %s", resp.Error))
	default:
		s.Registry.Revert(task.ID, node.ID)
		s.Logger.Warn("agent returned unrecognized status, reverting task", "task_id", task.ID, "status", resp.Status)
		s.AuditLog.Record("reject", task.ID, node.ID, fmt.Sprintf("unrecognized status %q", resp.Status))
	}
}
