// Command hub runs the ExoStack scheduling hub: the node registry
// (C7), readiness cache (C8), scheduler core (C9), health poller
// (C10), and task queue driver (C11), fronted by the HTTP API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/hub/advisor"
	"github.com/exostack/exostack/internal/hub/agentclient"
	"github.com/exostack/exostack/internal/hub/apiserver"
	"github.com/exostack/exostack/internal/hub/auditlog"
	"github.com/exostack/exostack/internal/hub/breaker"
	"github.com/exostack/exostack/internal/hub/cache"
	"github.com/exostack/exostack/internal/hub/poller"
	"github.com/exostack/exostack/internal/hub/registry"
	"github.com/exostack/exostack/internal/hub/scheduler"
	"github.com/exostack/exostack/internal/hub/taskqueue"
	"github.com/exostack/exostack/internal/hub/tasklock"
	"github.com/exostack/exostack/internal/metrics"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to hub YAML config file (optional; defaults + env vars are used otherwise)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadHubConfig(configFile)
	if err != nil {
		logger.Error("failed to load hub config", "error", err)
		os.Exit(1)
	}

	if ve := config.ValidateHubDetailed(cfg); ve != nil {
		logger.Error("invalid hub configuration", "errors", ve.Errors)
		os.Exit(1)
	}

	logger.Info("starting exostack hub", "address", cfg.APIServer.Address, "port", cfg.APIServer.Port)

	reg := registry.New()
	readinessCache := cache.New(cfg.Cache.TTL)
	audit := auditlog.New(500)
	br := breaker.New(cfg.Breaker.Threshold, cfg.Breaker.Window, cfg.Breaker.Cooldown)
	lock := tasklock.New()
	client := agentclient.New()

	var adv *advisor.Advisor
	if cfg.Advisor.Enabled {
		adv = advisor.New(true, cfg.Advisor.APIKey, cfg.Advisor.Model, cfg.Advisor.Timeout)
		logger.Info("advisory fallback gate enabled", "model", cfg.Advisor.Model)
	} else {
		adv = advisor.New(false, "", "", 0)
	}

	sched := scheduler.New(reg, readinessCache, client, br, lock, audit, adv, cfg.Scheduler, logger)
	poll := poller.New(reg, readinessCache, client, cfg.Poller, logger)
	queue := taskqueue.New(reg, sched, cfg.Queue, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go poll.Run(ctx)
	go queue.Run(ctx)
	go runOfflineSweep(ctx, reg, audit, cfg.Registry, logger)
	go runCacheCleanup(ctx, readinessCache, cfg.Cache)

	var server *http.Server
	if cfg.APIServer.Enabled {
		server = apiserver.NewServer(cfg.APIServer.Address, cfg.APIServer.Port, reg, readinessCache, audit)
		go func() {
			logger.Info("hub API server listening", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("hub HTTP server crashed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("hub HTTP server forced shutdown", "error", err)
		}
	}

	logger.Info("exostack hub shutdown complete")
}

func loadHubConfig(path string) (*config.HubConfig, error) {
	if path == "" {
		return config.DefaultHubConfig(), nil
	}
	return config.LoadHubConfigFromFile(path)
}

// runOfflineSweep is the registry's own ticker loop (part of C7): mark
// nodes whose heartbeat has lapsed as offline, requeue their
// in-flight tasks, and record each offlined node in the audit log.
func runOfflineSweep(ctx context.Context, reg *registry.Registry, audit *auditlog.Log, cfg config.RegistryConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			offlined := reg.SweepOffline(cfg.OfflineAfter)
			for _, id := range offlined {
				audit.Record("offline_sweep", "", id, "heartbeat timeout exceeded")
			}
			if len(offlined) > 0 {
				metrics.RegistryOfflineSweeps.Add(float64(len(offlined)))
				logger.Info("marked nodes offline", "nodes", offlined)
			}
			counts := reg.CountByStatus()
			for status, n := range counts {
				metrics.RegistryNodesByStatus.WithLabelValues(status).Set(float64(n))
			}
		}
	}
}

// runCacheCleanup periodically reclaims expired readiness cache
// entries (C8) so the map doesn't grow unbounded with long-offline
// nodes.
func runCacheCleanup(ctx context.Context, c *cache.Cache, cfg config.CacheConfig) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.EvictExpired()
			metrics.CacheSize.Set(float64(c.Size()))
		}
	}
}
