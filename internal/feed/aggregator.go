// Package feed produces and joins the two observation streams that drive
// signal detection: exchange price ticks and prediction-market odds.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

const defaultPollTimeout = 5 * time.Second

// Aggregator caches the newest odds per token and pairs every price tick with
// the cached odds of each market mapped to the tick's symbol.
type Aggregator struct {
	mu   sync.RWMutex
	odds map[string]domain.OddsObservation // token id -> newest snapshot

	// bySymbol is fixed at construction and only read afterwards.
	bySymbol map[string][]domain.MarketRef

	mirror      domain.OddsCache
	pollTimeout time.Duration
	metrics     *metrics.Recorder
	logger      *slog.Logger
}

// AggregatorOption configures optional Aggregator collaborators.
type AggregatorOption func(*Aggregator)

// WithOddsMirror copies every accepted snapshot to an external cache.
func WithOddsMirror(c domain.OddsCache) AggregatorOption {
	return func(a *Aggregator) { a.mirror = c }
}

// WithPollTimeout sets how long the loops wait for input before checking for
// shutdown again.
func WithPollTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.pollTimeout = d
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) AggregatorOption {
	return func(a *Aggregator) { a.metrics = rec }
}

// NewAggregator builds an Aggregator over the discovered markets.
func NewAggregator(markets []domain.MarketRef, logger *slog.Logger, opts ...AggregatorOption) *Aggregator {
	bySymbol := make(map[string][]domain.MarketRef)
	for _, m := range markets {
		bySymbol[m.Symbol] = append(bySymbol[m.Symbol], m)
	}
	a := &Aggregator{
		odds:        make(map[string]domain.OddsObservation),
		bySymbol:    bySymbol,
		pollTimeout: defaultPollTimeout,
		logger:      logger.With(slog.String("component", "aggregator")),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// UpdateOdds stores obs unless a newer snapshot for the same token is already
// cached. It reports whether obs was accepted.
func (a *Aggregator) UpdateOdds(ctx context.Context, obs domain.OddsObservation) bool {
	tok := obs.Market.TokenID

	a.mu.Lock()
	if cur, ok := a.odds[tok]; ok && obs.Timestamp.Before(cur.Timestamp) {
		a.mu.Unlock()
		a.logger.Debug("stale odds discarded",
			slog.String("token_id", tok),
			slog.Time("cached_at", cur.Timestamp),
			slog.Time("snapshot_at", obs.Timestamp),
		)
		return false
	}
	a.odds[tok] = obs
	a.mu.Unlock()

	a.metrics.OddsUpdate(obs.Symbol())
	if a.mirror != nil {
		if err := a.mirror.SetOdds(ctx, obs); err != nil {
			a.metrics.Error("odds_mirror")
			a.logger.Warn("odds mirror write failed",
				slog.String("token_id", tok),
				slog.String("error", err.Error()),
			)
		}
	}
	return true
}

// Odds returns the cached snapshot for a token.
func (a *Aggregator) Odds(tokenID string) (domain.OddsObservation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	o, ok := a.odds[tokenID]
	return o, ok
}

// Pair joins tick with every cached market of the same symbol. Markets without
// cached odds are skipped.
func (a *Aggregator) Pair(tick domain.PriceObservation) []domain.PairedObservation {
	markets := a.bySymbol[tick.Symbol]
	if len(markets) == 0 {
		return nil
	}

	a.mu.RLock()
	out := make([]domain.PairedObservation, 0, len(markets))
	for _, m := range markets {
		if o, ok := a.odds[m.TokenID]; ok {
			out = append(out, domain.PairedObservation{Price: tick, Odds: o})
		}
	}
	a.mu.RUnlock()

	a.metrics.Paired(tick.Symbol, len(out))
	return out
}

// Run consumes both input channels until ctx is cancelled. Paired
// observations are sent on out, blocking when it is full.
func (a *Aggregator) Run(ctx context.Context, prices <-chan domain.PriceObservation, odds <-chan domain.OddsObservation, out chan<- domain.PairedObservation) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runOdds(ctx, odds) })
	g.Go(func() error { return a.runPrices(ctx, prices, out) })
	return g.Wait()
}

func (a *Aggregator) runOdds(ctx context.Context, in <-chan domain.OddsObservation) error {
	idle := time.NewTicker(a.pollTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		case obs, ok := <-in:
			if !ok {
				return nil
			}
			a.UpdateOdds(ctx, obs)
		}
	}
}

func (a *Aggregator) runPrices(ctx context.Context, in <-chan domain.PriceObservation, out chan<- domain.PairedObservation) error {
	idle := time.NewTicker(a.pollTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		case tick, ok := <-in:
			if !ok {
				return nil
			}
			pairs := a.Pair(tick)
			if len(pairs) == 0 {
				a.logger.Debug("no cached odds for tick", slog.String("symbol", tick.Symbol))
				continue
			}
			for _, p := range pairs {
				select {
				case out <- p:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
