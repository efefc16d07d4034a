package strategy

import (
	"math"
	"testing"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestImpliedFairOdds(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())
	tests := []struct {
		mid, mom, want float64
	}{
		{0.50, 2.0, 0.56},
		{0.99, 5.0, 0.99},
		{0.02, -10, 0.01},
		{0.50, 0, 0.50},
		{1.5, 100, 0.99},
		{-3, -100, 0.01},
	}
	for _, tt := range tests {
		if got := s.ImpliedFairOdds(tt.mid, tt.mom); !approx(got, tt.want) {
			t.Errorf("ImpliedFairOdds(%v, %v) = %v, want %v", tt.mid, tt.mom, got, tt.want)
		}
	}
}

func TestCompositeScoreBounds(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())
	if got := s.CompositeScore(10, 5, 5); got != 1.0 {
		t.Fatalf("saturated score = %v, want exactly 1", got)
	}
	if got := s.CompositeScore(0, 0, 0); got != 0 {
		t.Fatalf("zero score = %v", got)
	}
	for _, edge := range []float64{-50, -3, 0, 2.5, 99} {
		for _, mom := range []float64{-20, -0.5, 0, 1, 30} {
			for _, vol := range []float64{0, 1.49, 1.5, 3, 100} {
				got := s.CompositeScore(edge, mom, vol)
				if got < 0 || got > 1 {
					t.Fatalf("score(%v,%v,%v) = %v out of range", edge, mom, vol, got)
				}
			}
		}
	}
}

func TestCompositeScoreVolumeSpike(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())
	below := s.CompositeScore(5, 2.5, 1.49)
	at := s.CompositeScore(5, 2.5, 1.5)
	if below != at {
		t.Fatalf("ratio at threshold adds nothing yet: below=%v at=%v", below, at)
	}
	// (5-1.5)/3.5 = 1 -> full volume weight.
	if got, want := s.CompositeScore(5, 2.5, 5), 0.5*0.5+0.3*0.5+0.2; !approx(got, want) {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func paired(mid float64) domain.PairedObservation {
	return domain.PairedObservation{
		Price: domain.PriceObservation{Symbol: "btcusdt", Price: 87000},
		Odds: domain.OddsObservation{
			Market:   domain.MarketRef{ConditionID: "c1", TokenID: "t1", Symbol: "btcusdt"},
			Midpoint: mid,
		},
	}
}

func TestEvaluateGates(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	tests := []struct {
		name     string
		mid, mom float64
		vol      float64
		wantGate Gate
		wantDir  domain.Direction
	}{
		{"momentum below threshold", 0.50, 0.1, 10, GateMomentum, 0},
		{"edge below threshold", 0.99, 1.0, 10, GateEdge, 0},
		{"score below threshold", 0.50, 1.0, 0, GateScore, 0},
		{"strong up move", 0.50, 5.0, 0, GateNone, domain.DirectionUp},
		{"strong down move", 0.50, -5.0, 0, GateNone, domain.DirectionDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, gate := s.Evaluate(paired(tt.mid), tt.mom, tt.vol)
			if gate != tt.wantGate {
				t.Fatalf("gate = %q, want %q", gate, tt.wantGate)
			}
			if gate != GateNone {
				return
			}
			if sig.Direction != tt.wantDir {
				t.Fatalf("direction = %v, want %v", sig.Direction, tt.wantDir)
			}
			if sig.Score < 0.6 || sig.Score > 1 {
				t.Fatalf("score = %v", sig.Score)
			}
			if sig.Market.TokenID != "t1" || sig.Symbol != "btcusdt" {
				t.Fatalf("signal lost market identity: %+v", sig)
			}
		})
	}
}

func TestEvaluateUsesInjectedThresholds(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.MinMomentumPct = 0.05
	cfg.MinSignalScore = 0
	cfg.MinEdgePct = 0.1
	s := NewScorer(cfg)
	if _, gate := s.Evaluate(paired(0.5), 0.1, 0); gate != GateNone {
		t.Fatalf("relaxed thresholds should pass, got gate %q", gate)
	}
}

type fixedMomentum struct{ mom, vol float64 }

func (f fixedMomentum) Momentum(string) float64    { return f.mom }
func (f fixedMomentum) VolumeRatio(string) float64 { return f.vol }

func TestDetectorDetect(t *testing.T) {
	d := NewDetector(NewScorer(DefaultScorerConfig()), fixedMomentum{mom: 5}, 0, nil, discardLogger())
	if _, ok := d.Detect(paired(0.5)); !ok {
		t.Fatal("expected a signal")
	}

	d = NewDetector(NewScorer(DefaultScorerConfig()), fixedMomentum{mom: 0.1}, 0, nil, discardLogger())
	if _, ok := d.Detect(paired(0.5)); ok {
		t.Fatal("expected no signal for weak momentum")
	}
}
