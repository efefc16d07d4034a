package feed

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
	"github.com/alanyoungcy/polycouncil/internal/platform/binance"
)

// PriceRecorder receives every tick before it is queued.
type PriceRecorder interface {
	Observe(obs domain.PriceObservation)
	Latest(symbol string) (float64, bool)
}

// TickSource streams ticker updates until ctx is cancelled.
type TickSource interface {
	Run(ctx context.Context, handle binance.TickHandler) error
}

// PriceFeed forwards exchange ticks into the pipeline.
type PriceFeed struct {
	source  TickSource
	tracker PriceRecorder
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewPriceFeed creates a PriceFeed.
func NewPriceFeed(source TickSource, tracker PriceRecorder, rec *metrics.Recorder, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		source:  source,
		tracker: tracker,
		metrics: rec,
		logger:  logger.With(slog.String("component", "price_feed")),
	}
}

// Run records each tick in the tracker and sends it on out.
func (f *PriceFeed) Run(ctx context.Context, out chan<- domain.PriceObservation) error {
	f.logger.Info("price feed started")
	defer f.logger.Info("price feed stopped")

	return f.source.Run(ctx, func(ctx context.Context, obs domain.PriceObservation) {
		emitPrice(ctx, f.tracker, f.metrics, obs, out)
	})
}

// LatestPrice returns the most recent price seen for symbol.
func (f *PriceFeed) LatestPrice(symbol string) (float64, bool) {
	return f.tracker.Latest(symbol)
}

func emitPrice(ctx context.Context, tracker PriceRecorder, rec *metrics.Recorder, obs domain.PriceObservation, out chan<- domain.PriceObservation) {
	tracker.Observe(obs)
	rec.PriceTick(obs.Symbol, obs.Price)
	select {
	case out <- obs:
	case <-ctx.Done():
	}
}
