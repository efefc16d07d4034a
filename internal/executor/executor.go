// Package executor drives divergence signals through the council and routes
// approved trades to the paper or live venue.
package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

// Evaluator is the decision council.
type Evaluator interface {
	Evaluate(ctx context.Context, sig domain.DivergenceSignal, availableCapital float64) domain.Decision
}

// CapitalSource reports the capital left for new trades.
type CapitalSource interface {
	AvailableCapital(ctx context.Context) (float64, error)
}

// OrderRouter executes approved decisions.
type OrderRouter interface {
	Execute(ctx context.Context, d domain.Decision) (*domain.OrderResult, error)
}

// DecisionEvent is the payload published for every evaluated signal.
type DecisionEvent struct {
	Decision  domain.Decision     `json:"decision"`
	Order     *domain.OrderResult `json:"order,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Config tunes the executor loop.
type Config struct {
	PollTimeout     time.Duration
	CleanupInterval time.Duration
}

// Executor consumes signals one at a time. Each signal is evaluated at most
// once.
type Executor struct {
	council  Evaluator
	capital  CapitalSource
	router   OrderRouter
	cooldown *Cooldown
	trades   domain.TradeStore
	bus      domain.SignalBus // optional
	cfg      Config
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// New creates an Executor. bus may be nil.
func New(council Evaluator, capital CapitalSource, router OrderRouter, cooldown *Cooldown,
	trades domain.TradeStore, bus domain.SignalBus, cfg Config, rec *metrics.Recorder, logger *slog.Logger) *Executor {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &Executor{
		council:  council,
		capital:  capital,
		router:   router,
		cooldown: cooldown,
		trades:   trades,
		bus:      bus,
		cfg:      cfg,
		metrics:  rec,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Run processes signals until ctx is cancelled or in is closed.
func (e *Executor) Run(ctx context.Context, in <-chan domain.DivergenceSignal) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	idle := time.NewTicker(e.cfg.PollTimeout)
	defer idle.Stop()
	cleanup := time.NewTicker(e.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		case <-cleanup.C:
			e.cooldown.Cleanup()
		case sig, ok := <-in:
			if !ok {
				return nil
			}
			e.Process(ctx, sig)
		}
	}
}

// Process handles one signal. It returns the decision, or false when the
// symbol was cooling down and the council was not consulted.
func (e *Executor) Process(ctx context.Context, sig domain.DivergenceSignal) (domain.Decision, bool) {
	log := e.logger.With(slog.String("symbol", sig.Symbol), slog.String("direction", sig.Direction.String()))

	if active, left := e.cooldown.Active(sig.Symbol); active {
		log.Debug("cooldown active, skipping", slog.Duration("remaining", left))
		e.metrics.CooldownSkip(sig.Symbol)
		return domain.Decision{}, false
	}

	e.publish(ctx, domain.ChannelSignal, sig)

	available, err := e.capital.AvailableCapital(ctx)
	if err != nil {
		e.metrics.Error("capital")
		log.Warn("available capital unknown, evaluating with zero", slog.String("error", err.Error()))
		available = 0
	}

	d := e.council.Evaluate(ctx, sig, available)
	e.metrics.Decision(d.Verdict.Action.String(), d.TotalLatency)

	var order *domain.OrderResult
	if d.Verdict.Action == domain.ActionTrade {
		order, err = e.router.Execute(ctx, d)
		if err != nil {
			log.Error("execution failed", slog.String("error", err.Error()))
		}
		if order != nil {
			e.cooldown.Start(sig.Symbol)
		}
	}

	rec := domain.SignalRecord{Signal: sig, CouncilAction: d.Verdict.Action, Timestamp: time.Now().UTC()}
	if err := e.trades.LogSignal(ctx, rec); err != nil {
		e.metrics.Error("store")
		log.Error("log signal failed", slog.String("error", err.Error()))
	}

	evt := DecisionEvent{Decision: d, Order: order, Timestamp: rec.Timestamp}
	e.publish(ctx, domain.ChannelDecision, evt)
	if order != nil {
		e.publish(ctx, domain.ChannelTrade, order)
	}
	e.appendStream(ctx, evt)

	log.Info("signal evaluated",
		slog.String("action", d.Verdict.Action.String()),
		slog.Float64("size_usd", d.Verdict.SizeUSD),
		slog.Float64("confidence", d.Confidence.Confidence),
		slog.Bool("ordered", order != nil),
		slog.Duration("latency", d.TotalLatency),
	)
	return d, true
}

func (e *Executor) publish(ctx context.Context, channel string, v any) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("marshal bus payload", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.metrics.Error("bus")
		e.logger.Warn("publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (e *Executor) appendStream(ctx context.Context, evt DecisionEvent) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := e.bus.StreamAppend(ctx, domain.StreamDecisions, payload); err != nil {
		e.metrics.Error("bus")
		e.logger.Warn("stream append failed", slog.String("error", err.Error()))
	}
}
