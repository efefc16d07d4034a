package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
	"github.com/alanyoungcy/polycouncil/internal/notify"
)

// ExecutionLockKey serializes execution across agent instances (stored as
// "lock:execution").
const ExecutionLockKey = "execution"

// RiskChecker validates a proposed trade size.
type RiskChecker interface {
	CanTrade(ctx context.Context, sizeUSD float64) (bool, string, error)
	AvailableCapital(ctx context.Context) (float64, error)
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event, title, message string) error
}

// TradingVenue is the live exchange surface.
type TradingVenue interface {
	Midpoint(ctx context.Context, tokenID string) (float64, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error)
}

// Venue fills an approved decision.
type Venue interface {
	Fill(ctx context.Context, d domain.Decision, side domain.OrderSide) (*domain.OrderResult, error)
	Name() string
}

// PaperVenue fills instantly at the signal's midpoint.
type PaperVenue struct{}

func (PaperVenue) Name() string { return "paper" }

func (PaperVenue) Fill(_ context.Context, d domain.Decision, side domain.OrderSide) (*domain.OrderResult, error) {
	return &domain.OrderResult{
		OrderID:     "paper-" + shortID(),
		ConditionID: d.Signal.Market.ConditionID,
		TokenID:     d.Signal.Market.TokenID,
		Side:        side,
		Price:       d.Signal.OddsMidpoint,
		SizeUSD:     d.Verdict.SizeUSD,
		IsPaper:     true,
		FilledAt:    time.Now().UTC(),
	}, nil
}

// LiveVenue posts a GTC limit order at the current midpoint.
type LiveVenue struct {
	venue TradingVenue
}

// NewLiveVenue wraps a trading venue.
func NewLiveVenue(v TradingVenue) *LiveVenue { return &LiveVenue{venue: v} }

func (l *LiveVenue) Name() string { return "live" }

func (l *LiveVenue) Fill(ctx context.Context, d domain.Decision, side domain.OrderSide) (*domain.OrderResult, error) {
	token := d.Signal.Market.TokenID
	mid, err := l.venue.Midpoint(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("live venue: midpoint %s: %w", token, err)
	}
	if mid <= 0 {
		return nil, fmt.Errorf("live venue: midpoint %s: %w", token, domain.ErrNoMidpoint)
	}

	receipt, err := l.venue.PlaceOrder(ctx, domain.OrderRequest{
		TokenID: token,
		Price:   mid,
		Shares:  d.Verdict.SizeUSD / mid,
		Side:    side,
	})
	if err != nil {
		return nil, fmt.Errorf("live venue: place order: %w", err)
	}

	id := receipt.OrderID
	if id == "" {
		id = "live-" + shortID()
	}
	return &domain.OrderResult{
		OrderID:     id,
		ConditionID: d.Signal.Market.ConditionID,
		TokenID:     token,
		Side:        side,
		Price:       mid,
		SizeUSD:     d.Verdict.SizeUSD,
		FilledAt:    time.Now().UTC(),
	}, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLock adds a distributed lock around the check-fill-record section.
func WithLock(l domain.LockManager, ttl time.Duration) RouterOption {
	return func(r *Router) {
		r.locks = l
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithNotifier sends trade_executed and risk_blocked events.
func WithNotifier(n Notifier) RouterOption {
	return func(r *Router) { r.notifier = n }
}

// WithRouterMetrics records orders and risk blocks.
func WithRouterMetrics(rec *metrics.Recorder) RouterOption {
	return func(r *Router) { r.metrics = rec }
}

// Router turns TRADE verdicts into orders and trade records.
type Router struct {
	mu       sync.Mutex
	risk     RiskChecker
	venue    Venue
	trades   domain.TradeStore
	locks    domain.LockManager
	lockTTL  time.Duration
	notifier Notifier
	metrics  *metrics.Recorder
	logger   *slog.Logger

	// pending is live exposure whose trade record failed to persist. The
	// risk gate cannot see it, so it is charged against capital here.
	pending float64
}

// NewRouter creates a Router.
func NewRouter(risk RiskChecker, venue Venue, trades domain.TradeStore, logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		risk:    risk,
		venue:   venue,
		trades:  trades,
		lockTTL: 30 * time.Second,
		logger:  logger.With(slog.String("component", "router"), slog.String("venue", venue.Name())),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Execute places an order for a TRADE decision. It returns nil for any
// other action and for risk blocks. The risk check, fill and record write
// are serialized so concurrent approvals cannot overrun the limits.
func (r *Router) Execute(ctx context.Context, d domain.Decision) (*domain.OrderResult, error) {
	if d.Verdict.Action != domain.ActionTrade || d.Verdict.SizeUSD <= 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, ExecutionLockKey, r.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("router: acquire %s: %w", ExecutionLockKey, err)
		}
		defer unlock()
	}

	sig := d.Signal
	log := r.logger.With(slog.String("symbol", sig.Symbol), slog.Float64("size_usd", d.Verdict.SizeUSD))

	ok, reason, err := r.check(ctx, d.Verdict.SizeUSD)
	if err != nil {
		r.metrics.Error("risk")
		return nil, fmt.Errorf("router: risk check: %w", err)
	}
	if !ok {
		log.Warn("risk blocked", slog.String("reason", reason))
		r.metrics.RiskBlock()
		r.notify(ctx, notify.EventRiskBlocked, func() (string, string) {
			return notify.RiskBlocked(sig.Symbol, d.Verdict.SizeUSD, reason)
		})
		return nil, nil
	}

	side := domain.SideFor(sig.Direction)
	res, err := r.venue.Fill(ctx, d, side)
	if err != nil {
		r.metrics.Error("order")
		return nil, fmt.Errorf("router: %w", err)
	}
	r.metrics.Order(r.venue.Name(), side.String())

	rec := domain.TradeRecord{
		OrderID:          res.OrderID,
		Symbol:           sig.Symbol,
		ConditionID:      res.ConditionID,
		TokenID:          res.TokenID,
		Side:             side,
		SizeUSD:          res.SizeUSD,
		EntryPrice:       res.Price,
		IsPaper:          res.IsPaper,
		SignalScore:      sig.Score,
		Sentiment:        d.Sentiment.Sentiment,
		Confidence:       d.Confidence.Confidence,
		Verdict:          d.Verdict.Action,
		CouncilReasoning: domain.Truncate(d.Verdict.Reasoning, domain.MaxReasoningLen),
		OpenedAt:         res.FilledAt,
	}
	if _, err := r.trades.LogTrade(ctx, rec); err != nil {
		r.metrics.Error("store")
		if res.IsPaper {
			// Nothing was placed anywhere; an unrecorded paper fill never happened.
			return nil, fmt.Errorf("router: log paper trade: %w", err)
		}
		// The live order exists at the venue and cannot be undone here.
		r.pending += res.SizeUSD
		log.Error("log trade failed",
			slog.String("order_id", res.OrderID),
			slog.Float64("pending_usd", r.pending),
			slog.String("error", err.Error()),
		)
	}

	log.Info("order filled",
		slog.String("order_id", res.OrderID),
		slog.String("side", side.String()),
		slog.Float64("price", res.Price),
		slog.Bool("paper", res.IsPaper),
	)
	r.notify(ctx, notify.EventTradeExecuted, func() (string, string) {
		return notify.TradeExecuted(d, *res)
	})
	return res, nil
}

func (r *Router) notify(ctx context.Context, event notify.Event, render func() (string, string)) {
	if r.notifier == nil {
		return
	}
	title, msg := render()
	if err := r.notifier.Notify(ctx, event, title, msg); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("notify failed", slog.String("event", string(event)), slog.String("error", err.Error()))
	}
}

// check runs the risk gate and then charges any unrecorded live exposure
// against the remaining capital. Callers hold r.mu.
func (r *Router) check(ctx context.Context, sizeUSD float64) (bool, string, error) {
	ok, reason, err := r.risk.CanTrade(ctx, sizeUSD)
	if err != nil || !ok || r.pending <= 0 {
		return ok, reason, err
	}
	avail, err := r.risk.AvailableCapital(ctx)
	if err != nil {
		return false, "", err
	}
	if sizeUSD+r.pending > avail {
		return false, fmt.Sprintf("Size $%.0f plus unrecorded $%.0f exceeds available $%.0f", sizeUSD, r.pending, avail), nil
	}
	return true, reason, nil
}
