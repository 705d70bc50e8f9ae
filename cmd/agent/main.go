// Command agent runs the ExoStack compute agent: the probes (C1-C3),
// the readiness evaluator (C4), the control endpoint (C5), and the
// lifecycle loop (C6) that registers and heartbeats against a hub.
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

	"github.com/exostack/exostack/internal/agent/history"
	"github.com/exostack/exostack/internal/agent/inference"
	"github.com/exostack/exostack/internal/agent/lifecycle"
	"github.com/exostack/exostack/internal/agentapi"
	"github.com/exostack/exostack/internal/config"
	"github.com/exostack/exostack/internal/probe"
	"github.com/exostack/exostack/internal/readiness"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to agent YAML config file (optional; defaults + env vars are used otherwise)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadAgentConfig(configFile)
	if err != nil {
		logger.Error("failed to load agent config", "error", err)
		os.Exit(1)
	}

	if ve := config.ValidateAgentDetailed(cfg); ve != nil {
		logger.Error("invalid agent configuration", "errors", ve.Errors)
		os.Exit(1)
	}

	logger.Info("starting exostack agent", "agent_id", cfg.AgentID, "hub_url", cfg.HubURL)

	powerProbe := probe.NewPowerProbe("")
	activityProbe := probe.NewActivityProbe()
	resourceProbe := probe.NewResourceProbe("")
	evaluator := readiness.New(cfg.Readiness, powerProbe, activityProbe, resourceProbe)

	taskHistory := history.New(200)
	engine := inference.NewSimulatedEngine()
	handler := agentapi.NewHandler(cfg.AgentID, evaluator, engine, taskHistory, resourceProbe, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if cfg.APIServer.Enabled {
		server = agentapi.NewServer(cfg.APIServer.Address, cfg.APIServer.Port, handler)
		go func() {
			logger.Info("agent control endpoint listening", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("agent HTTP server crashed", "error", err)
			}
		}()
	}

	loop := lifecycle.New(cfg.AgentID, cfg.Host, cfg.Port, cfg.HubURL, evaluator, cfg.Lifecycle, logger)

	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- loop.Run(ctx) }()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		<-loopErrCh
	case err := <-loopErrCh:
		if err != nil {
			logger.Error("lifecycle loop exited with error", "error", err)
			exitCode = 1
		}
		stop()
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("agent HTTP server forced shutdown", "error", err)
		}
	}

	logger.Info("exostack agent shutdown complete", "exit_code", exitCode)
	os.Exit(exitCode)
}

func loadAgentConfig(path string) (*config.AgentConfig, error) {
	if path == "" {
		return config.DefaultAgentConfig(), nil
	}
	return config.LoadAgentConfigFromFile(path)
}
