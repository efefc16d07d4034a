// Package app wires the divergence agent together and runs the configured
// mode until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alanyoungcy/polycouncil/internal/config"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

// App is the root application object. Cleanup functions run in reverse
// registration order on Close.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	closers  []func()
}

// New creates an App with its own metrics registry.
func New(cfg *config.Config, logger *slog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "app")),
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// Run wires dependencies and blocks in the configured mode. A cancelled
// context is a clean exit.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("trading_mode", a.cfg.Trading.Mode),
		slog.Bool("simulation", a.cfg.Feeds.Simulation),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "agent":
		err = a.AgentMode(ctx, deps)
	case "monitor":
		err = a.MonitorMode(ctx, deps)
	case "server":
		err = a.ServerMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases every wired resource. Subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
