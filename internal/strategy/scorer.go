package strategy

import (
	"math"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// ScorerConfig holds every threshold and weight the scorer applies.
type ScorerConfig struct {
	MinEdgePct           float64
	MinMomentumPct       float64
	MinSignalScore       float64
	Sensitivity          float64 // fair-odds shift per 1% of momentum
	VolumeSpikeThreshold float64
	WeightEdge           float64
	WeightMomentum       float64
	WeightVolume         float64
}

// DefaultScorerConfig returns the production thresholds.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MinEdgePct:           2.0,
		MinMomentumPct:       0.3,
		MinSignalScore:       0.6,
		Sensitivity:          0.03,
		VolumeSpikeThreshold: 1.5,
		WeightEdge:           0.5,
		WeightMomentum:       0.3,
		WeightVolume:         0.2,
	}
}

// Gate names the threshold that rejected an observation. The empty Gate means
// the observation passed.
type Gate string

const (
	GateNone     Gate = ""
	GateMomentum Gate = "momentum"
	GateEdge     Gate = "edge"
	GateScore    Gate = "score"
)

const (
	minFairOdds = 0.01
	maxFairOdds = 0.99

	edgeSaturationPct     = 10.0
	momentumSaturationPct = 5.0
	volumeSaturationSpan  = 3.5
)

// Scorer turns paired observations into divergence signals.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a Scorer. The config is expected to be validated already.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// ImpliedFairOdds shifts the midpoint by momentum*sensitivity and clamps the
// result to [0.01, 0.99].
func (s *Scorer) ImpliedFairOdds(midpoint, momentumPct float64) float64 {
	return clamp(midpoint+momentumPct*s.cfg.Sensitivity, minFairOdds, maxFairOdds)
}

// EdgePct is the gap between fair odds and the midpoint in percentage points.
func EdgePct(implied, midpoint float64) float64 {
	return (implied - midpoint) * 100
}

// CompositeScore combines the saturating sub-scores with the configured
// weights. The result is in [0, 1] and rounded to four decimals.
func (s *Scorer) CompositeScore(edgePct, momentumPct, volumeRatio float64) float64 {
	edge := math.Min(math.Abs(edgePct)/edgeSaturationPct, 1)
	mom := math.Min(math.Abs(momentumPct)/momentumSaturationPct, 1)

	vol := 0.0
	if volumeRatio >= s.cfg.VolumeSpikeThreshold {
		vol = math.Min((volumeRatio-s.cfg.VolumeSpikeThreshold)/volumeSaturationSpan, 1)
	}

	score := s.cfg.WeightEdge*edge + s.cfg.WeightMomentum*mom + s.cfg.WeightVolume*vol
	return math.Round(clamp(score, 0, 1)*1e4) / 1e4
}

// Evaluate applies the momentum, edge and score gates in that order. It
// returns the signal and GateNone when every gate passes.
func (s *Scorer) Evaluate(p domain.PairedObservation, momentumPct, volumeRatio float64) (domain.DivergenceSignal, Gate) {
	if math.Abs(momentumPct) < s.cfg.MinMomentumPct {
		return domain.DivergenceSignal{}, GateMomentum
	}

	mid := p.Odds.Midpoint
	implied := s.ImpliedFairOdds(mid, momentumPct)
	edge := EdgePct(implied, mid)
	if math.Abs(edge) < s.cfg.MinEdgePct {
		return domain.DivergenceSignal{}, GateEdge
	}

	score := s.CompositeScore(edge, momentumPct, volumeRatio)
	if score < s.cfg.MinSignalScore {
		return domain.DivergenceSignal{}, GateScore
	}

	dir := domain.DirectionDown
	if momentumPct > 0 {
		dir = domain.DirectionUp
	}

	return domain.DivergenceSignal{
		Symbol:          p.Price.Symbol,
		Price:           p.Price.Price,
		MomentumPct:     momentumPct,
		OddsMidpoint:    mid,
		ImpliedFairOdds: implied,
		EdgePct:         edge,
		Score:           score,
		Direction:       dir,
		Market:          p.Odds.Market,
		DetectedAt:      p.Price.Timestamp,
	}, GateNone
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
