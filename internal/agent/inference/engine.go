// Package inference models the collaborator spec.md §1 explicitly
// keeps out of scope: "the inference engine that actually runs a
// model on an agent; the core treats it as an opaque 'execute this
// task' operation that returns a result or an error." Engine is that
// seam; the default implementation simulates work proportional to the
// attached compute limits so the rest of the control plane (task
// history, metrics, scheduler rejection handling) can be exercised
// end to end without a real model runtime.
package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/exostack/exostack/internal/wire"
)

// Engine executes one task and returns an opaque result map or an
// error. Implementations MUST respect ctx cancellation/deadline.
type Engine interface {
	Execute(ctx context.Context, task wire.Task, limits wire.ComputeLimits) (map[string]any, error)
}

// SimulatedEngine is a placeholder Engine used when no real model
// runtime is wired in. It does not load any model; it exists so the
// execute endpoint's accept/reject/error handling is fully exercised.
type SimulatedEngine struct {
	// PerTaskWork is how long a simulated unit of work takes before
	// compute-limit scaling; defaults to 200ms.
	PerTaskWork time.Duration
}

// NewSimulatedEngine builds a SimulatedEngine with default timing.
func NewSimulatedEngine() *SimulatedEngine {
	return &SimulatedEngine{PerTaskWork: 200 * time.Millisecond}
}

// Execute "runs" the task: it sleeps for PerTaskWork, doubled when the
// caps allow fewer than 3 concurrent tasks (fewer concurrent slots,
// more care taken per task), and returns a canned result. The task
// type is not checked; every type gets the same canned result.
func (e *SimulatedEngine) Execute(ctx context.Context, task wire.Task, limits wire.ComputeLimits) (map[string]any, error) {
	work := e.PerTaskWork
	if work <= 0 {
		work = 200 * time.Millisecond
	}
	if limits.MaxConcurrentTasks > 0 && limits.MaxConcurrentTasks < 3 {
		// Throttled nodes take a little longer per task to stay within
		// the caps they reported.
		work = work * 2
	}

	select {
	case <-time.After(work):
	case <-ctx.Done():
		return nil, fmt.Errorf("inference cancelled: %w", ctx.Err())
	}

	return map[string]any{
		"task_id":   task.ID,
		"task_type": task.TaskType,
		"output":    fmt.Sprintf("simulated result for task %s", task.ID),
	}, nil
}
