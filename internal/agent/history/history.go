// Package history keeps the agent's bounded task outcome ring buffer
// (§4.5: "the agent records the outcome in its task history (bounded
// ring buffer, newest-wins eviction)"), grounded on the same
// shift-left eviction mechanics as internal/hub/auditlog.
package history

import (
	"sync"
	"time"
)

// Entry is a single completed or failed task execution record.
type Entry struct {
	TaskID      string
	Status      string // completed|failed
	DurationSec float64
	FinishedAt  time.Time
}

// History is a thread-safe ring buffer of task Entries.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// New builds a History with the given max capacity.
func New(maxEntries int) *History {
	return &History{entries: make([]Entry, 0, maxEntries), max: maxEntries}
}

// Record appends a task outcome, evicting the oldest entry if at
// capacity.
func (h *History) Record(taskID, status string, durationSec float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := Entry{TaskID: taskID, Status: status, DurationSec: durationSec, FinishedAt: time.Now()}
	if len(h.entries) >= h.max {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = e
	} else {
		h.entries = append(h.entries, e)
	}
}

// Stats summarises the ring buffer's current contents.
type Stats struct {
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	AvgDuration    float64
	SuccessRate    float64
}

// Snapshot computes Stats over the current buffer contents.
func (h *History) Snapshot() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var s Stats
	var totalDuration float64
	s.TotalTasks = len(h.entries)
	for _, e := range h.entries {
		totalDuration += e.DurationSec
		switch e.Status {
		case "completed":
			s.CompletedTasks++
		case "failed":
			s.FailedTasks++
		}
	}
	if s.TotalTasks > 0 {
		s.AvgDuration = totalDuration / float64(s.TotalTasks)
		s.SuccessRate = float64(s.CompletedTasks) / float64(s.TotalTasks) * 100
	}
	return s
}
