// Package taskqueue implements the hub's task queue driver (C11): a
// ticker loop that drains pending tasks, sorted by (priority desc,
// created_at asc), handing each to the scheduler. Dispatches for
// distinct tasks run concurrently; the scheduler's TaskLock is what
// actually prevents a double-dispatch of the same task id, not this
// loop's own sequencing (spec.md §4.11/§5).
package taskqueue

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/hub/registry"
	"github.com/exostack/exostack/internal/hub/scheduler"
)

// Queue drives periodic draining of pending tasks.
type Queue struct {
	Registry  *registry.Registry
	Scheduler *scheduler.Scheduler
	Cfg       config.QueueConfig
	Logger    *slog.Logger
}

// New builds a Queue.
func New(reg *registry.Registry, sched *scheduler.Scheduler, cfg config.QueueConfig, logger *slog.Logger) *Queue {
	return &Queue{Registry: reg, Scheduler: sched, Cfg: cfg, Logger: logger}
}

// Run ticks at Cfg.DrainInterval until ctx is cancelled, draining the
// pending task set each tick.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.Cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drain(ctx)
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	pending := q.Registry.ListPendingTasks()
	if len(pending) == 0 {
		return
	}

	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	for _, t := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		go q.Scheduler.Dispatch(ctx, t)
	}
}
