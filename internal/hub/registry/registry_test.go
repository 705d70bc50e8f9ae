package registry

import (
	"testing"
	"time"

	"github.com/exostack/exostack/internal/wire"
)

func TestRegisterPreservesCurrentLoad(t *testing.T) {
	r := New()
	r.Register(wire.RegisterRequest{ID: "node-1", Host: "10.0.0.1", Port: 8090, MaxConcurrentTasks: 2})

	task := r.SubmitTask(Task{ID: "t1"})
	if _, err := r.TryAssign(task.ID, "node-1"); err != nil {
		t.Fatalf("TryAssign: %v", err)
	}

	node, ok := r.GetNode("node-1")
	if !ok || node.CurrentLoad != 1 {
		t.Fatalf("expected current_load=1 after assign, got %+v", node)
	}

	r.Register(wire.RegisterRequest{ID: "node-1", Host: "10.0.0.1", Port: 8090, MaxConcurrentTasks: 2})

	node, ok = r.GetNode("node-1")
	if !ok || node.CurrentLoad != 1 {
		t.Fatalf("expected current_load preserved across re-registration, got %+v", node)
	}
}

func TestUpdateHeartbeatUnknownNode(t *testing.T) {
	r := New()
	if err := r.UpdateHeartbeat("ghost", wire.HeartbeatRequest{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown node, got %v", err)
	}
}

func TestTryAssignRejectsNonPending(t *testing.T) {
	r := New()
	r.Register(wire.RegisterRequest{ID: "node-1", MaxConcurrentTasks: 2})
	task := r.SubmitTask(Task{ID: "t1"})

	if _, err := r.TryAssign(task.ID, "node-1"); err != nil {
		t.Fatalf("first TryAssign: %v", err)
	}
	if _, err := r.TryAssign(task.ID, "node-1"); err == nil {
		t.Fatal("expected second TryAssign on an already-running task to fail")
	}
}

func TestRevertDecrementsLoad(t *testing.T) {
	r := New()
	r.Register(wire.RegisterRequest{ID: "node-1", MaxConcurrentTasks: 2})
	task := r.SubmitTask(Task{ID: "t1"})
	r.TryAssign(task.ID, "node-1")

	r.Revert(task.ID, "node-1")

	node, _ := r.GetNode("node-1")
	if node.CurrentLoad != 0 {
		t.Fatalf("expected current_load=0 after revert, got %d", node.CurrentLoad)
	}
	got, _ := r.GetTask(task.ID)
	if got.Status != "pending" {
		t.Fatalf("expected task pending after revert, got %s", got.Status)
	}
}

func TestFinishDecrementsLoad(t *testing.T) {
	r := New()
	r.Register(wire.RegisterRequest{ID: "node-1", MaxConcurrentTasks: 2})
	task := r.SubmitTask(Task{ID: "t1"})
	r.TryAssign(task.ID, "node-1")

	if err := r.Finish(task.ID, "node-1", "completed"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	node, _ := r.GetNode("node-1")
	if node.CurrentLoad != 0 {
		t.Fatalf("expected current_load=0 after finish, got %d", node.CurrentLoad)
	}
	got, _ := r.GetTask(task.ID)
	if got.Status != "completed" {
		t.Fatalf("expected task completed, got %s", got.Status)
	}
}

func TestSweepOfflineRequeuesRunningTasks(t *testing.T) {
	r := New()
	r.Register(wire.RegisterRequest{ID: "node-1", MaxConcurrentTasks: 2})
	task := r.SubmitTask(Task{ID: "t1"})
	r.TryAssign(task.ID, "node-1")

	// Force the node's last heartbeat far enough into the past to trip
	// the sweep.
	r.mu.Lock()
	r.nodes["node-1"].LastHeartbeatAt = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	offlined := r.SweepOffline(time.Minute)
	if len(offlined) != 1 || offlined[0] != "node-1" {
		t.Fatalf("expected node-1 offlined, got %v", offlined)
	}

	node, _ := r.GetNode("node-1")
	if node.Status != "offline" || node.CurrentLoad != 0 {
		t.Fatalf("expected offline node with current_load reset, got %+v", node)
	}

	got, _ := r.GetTask(task.ID)
	if got.Status != "pending" || got.AssignedNodeID != "" {
		t.Fatalf("expected task requeued to pending, got %+v", got)
	}
}

func TestListPendingTasksExcludesAssigned(t *testing.T) {
	r := New()
	r.Register(wire.RegisterRequest{ID: "node-1", MaxConcurrentTasks: 2})
	t1 := r.SubmitTask(Task{ID: "t1"})
	r.SubmitTask(Task{ID: "t2"})
	r.TryAssign(t1.ID, "node-1")

	pending := r.ListPendingTasks()
	if len(pending) != 1 || pending[0].ID != "t2" {
		t.Fatalf("expected only t2 pending, got %+v", pending)
	}
}
