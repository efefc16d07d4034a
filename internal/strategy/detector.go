package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

// MomentumSource supplies the per-symbol figures the scorer needs.
type MomentumSource interface {
	Momentum(symbol string) float64
	VolumeRatio(symbol string) float64
}

// Detector reads paired observations, scores them and forwards the signals
// that pass every gate.
type Detector struct {
	scorer      *Scorer
	momentum    MomentumSource
	pollTimeout time.Duration
	metrics     *metrics.Recorder
	logger      *slog.Logger
}

// NewDetector creates a Detector. pollTimeout bounds how long the loop waits
// for input before re-checking for shutdown.
func NewDetector(scorer *Scorer, momentum MomentumSource, pollTimeout time.Duration, rec *metrics.Recorder, logger *slog.Logger) *Detector {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Detector{
		scorer:      scorer,
		momentum:    momentum,
		pollTimeout: pollTimeout,
		metrics:     rec,
		logger:      logger.With(slog.String("component", "detector")),
	}
}

// Run consumes in until ctx is cancelled or in is closed. Sends on out block
// when the signal queue is full.
func (d *Detector) Run(ctx context.Context, in <-chan domain.PairedObservation, out chan<- domain.DivergenceSignal) error {
	idle := time.NewTicker(d.pollTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			continue
		case p, ok := <-in:
			if !ok {
				return nil
			}
			sig, ok := d.Detect(p)
			if !ok {
				continue
			}
			select {
			case out <- sig:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Detect scores a single paired observation.
func (d *Detector) Detect(p domain.PairedObservation) (domain.DivergenceSignal, bool) {
	sym := p.Price.Symbol
	mom := d.momentum.Momentum(sym)
	sig, gate := d.scorer.Evaluate(p, mom, d.momentum.VolumeRatio(sym))
	if gate != GateNone {
		d.metrics.Rejection(string(gate))
		return domain.DivergenceSignal{}, false
	}

	d.metrics.Signal(sig.Symbol, sig.Direction.String())
	d.logger.Info("divergence signal",
		slog.String("symbol", sig.Symbol),
		slog.String("direction", sig.Direction.String()),
		slog.Float64("momentum_pct", sig.MomentumPct),
		slog.Float64("odds", sig.OddsMidpoint),
		slog.Float64("fair_odds", sig.ImpliedFairOdds),
		slog.Float64("edge_pct", sig.EdgePct),
		slog.Float64("score", sig.Score),
		slog.String("token_id", sig.Market.TokenID),
	)
	return sig, true
}
