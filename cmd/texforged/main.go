// Command texforged runs the conversion orchestration engine as a
// long-lived daemon: it loads configuration, wires the Orchestrator,
// and serves a Prometheus metrics endpoint until asked to shut down.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/internal/orchestrator"
	"github.com/texforge/texforge/pkg/config"
	"github.com/texforge/texforge/pkg/logger"
)

func main() {
	cfg, path, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	initializeLogging(cfg)
	mainLogger := logger.WithField("component", "main")
	mainLogger.Info("texforged starting", "configPath", path, "maxConcurrent", cfg.Orchestrator.MaxConcurrent)

	m := metrics.NoOp()
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	orch := orchestrator.New(cfg, logger.WithField("component", "orchestrator-root"), m)

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: ":9090", Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				mainLogger.Error("metrics server failed", "error", err)
			}
		}()
		mainLogger.Info("metrics endpoint listening", "addr", srv.Addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	mainLogger.Info("shutdown signal received, draining", "signal", sig.String())

	orch.Shutdown(cfg.Orchestrator.ShutdownDrain)

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}

	mainLogger.Info("texforged exiting")
}

func initializeLogging(cfg *config.Config) {
	if level, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	} else {
		log.Printf("invalid log level %q, using INFO", cfg.Logging.Level)
		logger.SetLevel(logger.INFO)
	}
}
