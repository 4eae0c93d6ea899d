package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/streamharness/component"
	"github.com/c360studio/streamharness/component/builtin"
	"github.com/c360studio/streamharness/config"
	"github.com/c360studio/streamharness/harness"
	"github.com/c360studio/streamharness/loader"
)

// runHarness loads the manifest topology and runs it until completion or a
// termination signal.
func runHarness(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	deps := component.Dependencies{Logger: logger}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		deps.MetricsRegistry = registry
		go serveMetrics(cfg, registry, logger)
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.NATS.Name))
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		defer nc.Close()
		deps.NATSConn = nc
		logger.Info("Lifecycle events enabled", "nats_url", cfg.NATS.URL)
	}

	h, err := harness.New(cfg.ToOptions(), deps)
	if err != nil {
		return err
	}

	registry := loader.NewRegistry()
	if err := builtin.Register(registry); err != nil {
		return err
	}

	l := loader.NewLoader(registry, logger)
	if err := l.LoadFile(cfg.Manifest.Path, h, deps); err != nil {
		return err
	}
	logger.Info("Topology loaded",
		"manifest", cfg.Manifest.Path,
		"components", h.ComponentCount(),
		"connections", h.ConnectionCount())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Manifest.Watch {
		// A running topology cannot be rewired; watching surfaces edits
		// so operators know a restart will pick them up.
		go func() {
			_ = loader.Watch(ctx, cfg.Manifest.Path, logger, func(m *loader.Manifest) {
				logger.Info("Manifest changed on disk; restart to apply",
					"components", len(m.Components))
			})
		}()
	}

	h.Start(ctx)
	if err := h.WaitUntilReady(cfg.ToOptions().StartupTimeout); err != nil {
		return h.Wait()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()

	select {
	case sig := <-sigCh:
		logger.Info("Signal received, shutting down", "signal", sig.String())
		h.Stop()
		return h.Wait()
	case err := <-done:
		return err
	}
}

func serveMetrics(cfg *config.Config, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("Metrics endpoint listening", "addr", cfg.Metrics.ListenAddr, "path", cfg.Metrics.Path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics endpoint failed", "error", err)
	}
}
