// Package server exposes the dashboard API, Prometheus metrics and the
// WebSocket event relay.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/alanyoungcy/polycouncil/internal/server/handler"
	"github.com/alanyoungcy/polycouncil/internal/server/middleware"
	"github.com/alanyoungcy/polycouncil/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string  // empty disables auth
	RateLimit   float64 // requests/s per client IP; 0 disables
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Status *handler.StatusHandler
	Trades *handler.TradeHandler
	Odds   *handler.OddsHandler
}

// Server is the dashboard HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	logger     *slog.Logger
}

// New registers every route. gatherer backs GET /metrics; hub may be nil.
func New(cfg Config, handlers Handlers, hub *ws.Hub, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           Routes(cfg, handlers, hub, gatherer, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		hub:    hub,
		logger: logger,
	}
}

// Routes builds the middleware-wrapped mux.
func Routes(cfg Config, handlers Handlers, hub *ws.Hub, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handler.Health)
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	if handlers.Trades != nil {
		mux.HandleFunc("GET /api/trades", handlers.Trades.ListRecent)
		mux.HandleFunc("GET /api/trades/open", handlers.Trades.ListOpen)
		mux.HandleFunc("GET /api/pnl", handlers.Trades.PnL)
		mux.HandleFunc("POST /api/trades/{id}/close", handlers.Trades.Close)
	}
	if handlers.Odds != nil {
		mux.HandleFunc("GET /api/odds", handlers.Odds.List)
		mux.HandleFunc("GET /api/odds/{token}", handlers.Odds.Get)
	}
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	h = middleware.RateLimit(cfg.RateLimit, 0)(h)
	h = middleware.Logging(logger)(h)
	h = corsHandler(cfg.CORSOrigins).Handler(h)
	return h
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		MaxAge:         86400,
	})
}

// Run serves until ctx ends, then shuts down gracefully. The hub loop runs
// alongside the listener.
func (s *Server) Run(ctx context.Context) error {
	if s.hub != nil {
		go func() { _ = s.hub.Run(ctx) }()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}
