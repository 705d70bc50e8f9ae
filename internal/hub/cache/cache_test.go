package cache

import (
	"testing"
	"time"

	"github.com/exostack/exostack/internal/wire"
)

func TestGetMissOnAbsentEntry(t *testing.T) {
	c := New(time.Minute)
	if _, ok := c.Get("node-1"); ok {
		t.Fatal("expected miss for absent entry")
	}
}

func TestPutThenGetHit(t *testing.T) {
	c := New(time.Minute)
	snap := wire.ReadinessSnapshot{ReadinessScore: 80}
	c.Put("node-1", snap)

	got, ok := c.Get("node-1")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.ReadinessScore != 80 {
		t.Fatalf("expected score 80, got %d", got.ReadinessScore)
	}
}

func TestGetMissOnStaleEntry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Put("node-1", wire.ReadinessSnapshot{ReadinessScore: 80})

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("node-1"); ok {
		t.Fatal("expected miss once entry exceeds TTL")
	}
}

func TestEvict(t *testing.T) {
	c := New(time.Minute)
	c.Put("node-1", wire.ReadinessSnapshot{})
	c.Evict("node-1")

	if _, ok := c.Get("node-1"); ok {
		t.Fatal("expected miss after explicit evict")
	}
}

func TestEvictExpiredReclaimsOnlyStaleEntries(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Put("stale", wire.ReadinessSnapshot{})
	time.Sleep(20 * time.Millisecond)
	c.Put("fresh", wire.ReadinessSnapshot{})

	removed := c.EvictExpired()
	if removed != 1 {
		t.Fatalf("expected 1 entry removed, got %d", removed)
	}
	if c.Size() != 1 {
		t.Fatalf("expected 1 entry remaining, got %d", c.Size())
	}
}
