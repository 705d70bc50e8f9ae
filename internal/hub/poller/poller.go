// Package poller implements the hub's health poller (C10): a ticker
// loop that periodically calls every online node's health_detailed
// endpoint and refreshes the registry and readiness cache on success,
// leaving state untouched on failure (the offline sweep in the
// registry is the sole authority on marking a node offline — spec.md
// §4.10). Shaped on the teacher's controller reconcile-loop pattern:
// one ticker, snapshot the world, act per item.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/hub/agentclient"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/registry"
)

// Poller periodically refreshes every online node's health snapshot.
type Poller struct {
	Registry    *registry.Registry
	Cache       *cache.Cache
	AgentClient *agentclient.Client
	Cfg         config.PollerConfig
	Logger      *slog.Logger
}

// New builds a Poller.
func New(reg *registry.Registry, c *cache.Cache, client *agentclient.Client, cfg config.PollerConfig, logger *slog.Logger) *Poller {
	return &Poller{Registry: reg, Cache: c, AgentClient: client, Cfg: cfg, Logger: logger}
}

// Run ticks at Cfg.Interval until ctx is cancelled, polling all online
// nodes concurrently each tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	nodes := p.Registry.GetAllNodes()

	var wg sync.WaitGroup
	for _, n := range nodes {
		if n.Status != "online" {
			continue
		}
		wg.Add(1)
		go func(n registry.Node) {
			defer wg.Done()
			p.pollOne(ctx, n)
		}(n)
	}
	wg.Wait()
}

func (p *Poller) pollOne(ctx context.Context, n registry.Node) {
	pollCtx, cancel := context.WithTimeout(ctx, p.Cfg.Timeout)
	defer cancel()

	health, err := p.AgentClient.FetchHealthDetailed(pollCtx, n.Host, n.Port)
	if err != nil {
		p.Logger.Debug("health poll failed, leaving node state unchanged", "node_id", n.ID, "error", err)
		return
	}

	if err := p.Registry.UpdateHealth(n.ID, health); err != nil {
		p.Logger.Debug("health poll update against unknown node", "node_id", n.ID, "error", err)
		return
	}
	p.Cache.Put(n.ID, health.Readiness)
}
