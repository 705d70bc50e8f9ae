// Package registry implements the hub's node registry and task index
// (C7): an in-memory map of node id to node record plus the task
// table, with per-record transactional semantics (readers see either
// the pre- or post-update snapshot, never a tear) grounded on the
// teacher's internal/state/cluster.go RWMutex-guarded-map shape.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/exostack/exostack/internal/wire"
)

// Node is the hub's view of one registered agent (spec.md §3).
type Node struct {
	ID                 string
	Host               string
	Port               int
	Capabilities       []string
	MaxConcurrentTasks int
	Status             string // online|offline
	LastHeartbeatAt    time.Time
	LastHealth         *wire.HealthDetailedResponse
	CurrentLoad        int

	// Cached readiness facts from the most recent heartbeat, used by
	// the scheduler alongside (and independently of) the readiness
	// cache's TTL-governed snapshot.
	ReadyForAI     bool
	ReadinessScore int
	GPUAvailable   bool
}

// Task is the hub's record of one submitted unit of work (spec.md §3).
type Task struct {
	ID             string
	TaskType       string
	Priority       int
	CreatedAt      time.Time
	Payload        map[string]any
	Status         string // pending|running|completed|failed
	AssignedNodeID string
}

// ErrNotFound is returned by operations against an unknown node or
// task id.
var ErrNotFound = fmt.Errorf("not found")

// Registry holds the node and task tables under one mutex: both
// tables are small, in-memory, and the sweep operation touches both
// together, so a single lock keeps the invariants easy to reason
// about without introducing lock-ordering hazards.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	tasks map[string]*Task
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[string]*Node),
		tasks: make(map[string]*Task),
	}
}

// Register upserts a node from a registration request. On
// re-registration of a known id, current_load is preserved (spec.md
// §4.7): a restarting or reconnecting agent does not get to claim it
// has zero in-flight tasks if the hub still believes otherwise.
func (r *Registry) Register(req wire.RegisterRequest) Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentLoad := 0
	if existing, ok := r.nodes[req.ID]; ok {
		currentLoad = existing.CurrentLoad
	}

	node := &Node{
		ID:                 req.ID,
		Host:               req.Host,
		Port:               req.Port,
		Capabilities:       append([]string(nil), req.Capabilities...),
		MaxConcurrentTasks: req.MaxConcurrentTasks,
		Status:             "online",
		LastHeartbeatAt:    time.Now(),
		CurrentLoad:        currentLoad,
		ReadyForAI:         req.ReadyForAI,
		ReadinessScore:     req.ReadinessScore,
		GPUAvailable:       req.GPUAvailable,
	}
	r.nodes[req.ID] = node
	return *node
}

// UpdateHeartbeat refreshes last_heartbeat_at and the cached readiness
// fields for a known node, setting status=online. Returns ErrNotFound
// for an unknown id so the HTTP layer can answer 404 and the agent
// knows to re-register (spec.md §6).
func (r *Registry) UpdateHeartbeat(id string, hb wire.HeartbeatRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrNotFound
	}
	node.Status = "online"
	node.LastHeartbeatAt = time.Now()
	node.ReadyForAI = hb.ReadyForAI
	node.ReadinessScore = hb.ReadinessScore
	node.GPUAvailable = hb.CurrentResources.GPUAvailable
	return nil
}

// UpdateHealth stores the most recent health_detailed snapshot for a
// node, called by the health poller (C10).
func (r *Registry) UpdateHealth(id string, snapshot wire.HealthDetailedResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrNotFound
	}
	snap := snapshot
	node.LastHealth = &snap
	node.ReadyForAI = snapshot.Readiness.ReadyForAI
	node.ReadinessScore = snapshot.Readiness.ReadinessScore
	node.GPUAvailable = snapshot.Readiness.CurrentResources.GPUAvailable
	return nil
}

// GetNode returns an immutable copy of a node record.
func (r *Registry) GetNode(id string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetAllNodes returns immutable copies of every registered node.
func (r *Registry) GetAllNodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	return out
}

// SubmitTask adds a new pending task to the registry.
func (r *Registry) SubmitTask(t Task) Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Status = "pending"
	r.tasks[t.ID] = &t
	return t
}

// GetTask returns an immutable copy of a task record.
func (r *Registry) GetTask(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// ListPendingTasks returns immutable copies of every task currently
// pending, for the task queue driver (C11) to sort and dispatch.
func (r *Registry) ListPendingTasks() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Task
	for _, t := range r.tasks {
		if t.Status == "pending" {
			out = append(out, *t)
		}
	}
	return out
}

// TryAssign atomically transitions a task from pending to running and
// increments the target node's current_load, or fails if the task is
// not pending, the node is unknown, or the node is already at its
// concurrency ceiling. This is the compare-and-swap spec.md §5
// describes as one valid way to serialize per-task-id transitions.
func (r *Registry) TryAssign(taskID, nodeID string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	if t.Status != "pending" {
		return Task{}, fmt.Errorf("task %s is not pending (status=%s)", taskID, t.Status)
	}
	n, ok := r.nodes[nodeID]
	if !ok {
		return Task{}, fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	if n.CurrentLoad >= n.MaxConcurrentTasks {
		return Task{}, fmt.Errorf("node %s is at its concurrency ceiling (%d/%d)", nodeID, n.CurrentLoad, n.MaxConcurrentTasks)
	}

	t.Status = "running"
	t.AssignedNodeID = nodeID
	n.CurrentLoad++
	return *t, nil
}

// Revert transitions a running task back to pending (a rejection or
// transport error before the agent accepted the task) and decrements
// the assigned node's current_load. A no-op if the task is not
// currently running on the given node (defends against a stale
// caller acting on an already-resolved task).
func (r *Registry) Revert(taskID, nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.Status != "running" || t.AssignedNodeID != nodeID {
		return
	}
	t.Status = "pending"
	t.AssignedNodeID = ""
	if n, ok := r.nodes[nodeID]; ok && n.CurrentLoad > 0 {
		n.CurrentLoad--
	}
}

// Finish transitions a running task to completed or failed and
// decrements the assigned node's current_load.
func (r *Registry) Finish(taskID, nodeID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	if n, ok := r.nodes[nodeID]; ok && n.CurrentLoad > 0 {
		n.CurrentLoad--
	}
	return nil
}

// SweepOffline marks every node whose last heartbeat is older than
// timeout as offline, resets its current_load to 0, and re-queues any
// task the registry believed was running on it back to pending
// (spec.md §4.7/§8). Returns the ids of nodes newly marked offline.
func (r *Registry) SweepOffline(timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	var offlined []string

	for id, n := range r.nodes {
		if n.Status != "online" {
			continue
		}
		if n.LastHeartbeatAt.After(cutoff) {
			continue
		}
		n.Status = "offline"
		n.CurrentLoad = 0
		offlined = append(offlined, id)

		for _, t := range r.tasks {
			if t.Status == "running" && t.AssignedNodeID == id {
				t.Status = "pending"
				t.AssignedNodeID = ""
			}
		}
	}
	return offlined
}

// CountByStatus returns how many nodes are currently online/offline,
// for /status/health and the registry-size metric.
func (r *Registry) CountByStatus() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[string]int{"online": 0, "offline": 0}
	for _, n := range r.nodes {
		counts[n.Status]++
	}
	return counts
}
