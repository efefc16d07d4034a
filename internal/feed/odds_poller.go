package feed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

// MidpointSource returns the current order-book midpoint of a token.
type MidpointSource interface {
	Midpoint(ctx context.Context, tokenID string) (float64, error)
}

// OddsPoller polls the midpoint of every discovered market on a fixed
// interval.
type OddsPoller struct {
	source   MidpointSource
	markets  []domain.MarketRef
	interval time.Duration
	limiter  *rate.Limiter
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewOddsPoller creates a poller. rps bounds the request rate across all
// markets; rps <= 0 disables pacing.
func NewOddsPoller(source MidpointSource, markets []domain.MarketRef, interval time.Duration, rps float64, rec *metrics.Recorder, logger *slog.Logger) *OddsPoller {
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OddsPoller{
		source:   source,
		markets:  markets,
		interval: interval,
		limiter:  lim,
		metrics:  rec,
		logger:   logger.With(slog.String("component", "odds_poller")),
	}
}

// Run polls immediately and then once per interval until ctx is cancelled.
func (p *OddsPoller) Run(ctx context.Context, out chan<- domain.OddsObservation) error {
	p.logger.Info("odds poller started", slog.Int("markets", len(p.markets)), slog.Duration("interval", p.interval))
	defer p.logger.Info("odds poller stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx, out)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce fetches every market once and returns how many snapshots were
// emitted. Failures and non-positive midpoints are skipped.
func (p *OddsPoller) PollOnce(ctx context.Context, out chan<- domain.OddsObservation) int {
	sent := 0
	for _, m := range p.markets {
		if err := p.limiter.Wait(ctx); err != nil {
			return sent
		}
		mid, err := p.source.Midpoint(ctx, m.TokenID)
		if err != nil {
			if ctx.Err() != nil {
				return sent
			}
			p.metrics.Error("odds_poll")
			p.logger.Warn("midpoint fetch failed",
				slog.String("token_id", m.TokenID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if mid <= 0 {
			continue
		}
		obs := domain.OddsObservation{Market: m, Midpoint: mid, Timestamp: time.Now().UTC()}
		select {
		case out <- obs:
			sent++
		case <-ctx.Done():
			return sent
		}
	}
	return sent
}
