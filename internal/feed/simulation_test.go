package feed

import (
	"context"
	"math"
	"testing"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/strategy"
)

func TestSimulatedMarkets(t *testing.T) {
	cfg := SimConfig{MarketsPerSymbol: 3, StrikeSpreadPct: 1}
	refs := SimulatedMarkets([]string{"btcusdt"}, cfg, nil)
	if len(refs) != 3 {
		t.Fatalf("markets = %d", len(refs))
	}
	want := []string{
		"Will BTC be above $86,130.00 in 15 min?",
		"Will BTC be above $87,000.00 in 15 min?",
		"Will BTC be above $87,870.00 in 15 min?",
	}
	for i, r := range refs {
		if r.Question != want[i] {
			t.Errorf("question[%d] = %q, want %q", i, r.Question, want[i])
		}
	}
	if refs[0].ConditionID != "sim-btcusdt-0" || refs[2].TokenID != "sim-tok-btcusdt-2" || refs[1].Outcome != "Yes" {
		t.Fatalf("unexpected ids %+v", refs)
	}
}

func TestStrikeOffsets(t *testing.T) {
	if got := strikeOffsets(1, 0.01); len(got) != 1 || got[0] != 0 {
		t.Fatalf("n=1: %v", got)
	}
	if got := strikeOffsets(2, 0.01); got[0] != -0.01 || got[1] != 0.01 {
		t.Fatalf("n=2: %v", got)
	}
	got := strikeOffsets(5, 0.01)
	if len(got) != 5 || math.Abs(got[3]-0.02) > 1e-12 || math.Abs(got[4]-0.03) > 1e-12 {
		t.Fatalf("n=5: %v", got)
	}
}

func TestStrikeFromQuestion(t *testing.T) {
	if v, ok := StrikeFromQuestion("Will BTC be above $87,000.00 in 15 min?"); !ok || v != 87000 {
		t.Fatalf("got %v, %v", v, ok)
	}
	for _, q := range []string{"no dollar sign", "Will X be above $abc in 15 min?"} {
		if _, ok := StrikeFromQuestion(q); ok {
			t.Errorf("%q parsed", q)
		}
	}
}

func TestLaggedOdds(t *testing.T) {
	if got := LaggedOdds(100, 100, 0); got != 0.5 {
		t.Fatalf("at strike = %v", got)
	}
	if got := LaggedOdds(101, 100, 0); got != 0.6 {
		t.Fatalf("1%% above = %v", got)
	}
	if got := LaggedOdds(200, 100, 0); got != 0.95 {
		t.Fatalf("clamp high = %v", got)
	}
	if got := LaggedOdds(50, 100, 0); got != 0.05 {
		t.Fatalf("clamp low = %v", got)
	}
}

func TestSimOddsFeedLags(t *testing.T) {
	cfg := SimConfig{MarketsPerSymbol: 1, PriceLagSeconds: 2, OddsInterval: 1e9, Seed: 7}
	markets := SimulatedMarkets([]string{"btcusdt"}, cfg, nil)

	price := 87000.0
	feed := NewSimOddsFeed(markets, cfg, func(string) (float64, bool) { return price, true }, discardLogger())

	first := feed.Step()
	if len(first) != 1 || first[0].Midpoint != 0.5 {
		t.Fatalf("first = %+v", first)
	}
	price = 87870 // +1%
	feed.Step()
	// The buffer holds lag+1 = 3 samples, so the jump is not visible yet.
	if got := feed.Step()[0].Midpoint; got != 0.5 {
		t.Fatalf("lagged odds = %v, want 0.5", got)
	}
	if got := feed.Step()[0].Midpoint; got != 0.6 {
		t.Fatalf("odds after lag = %v, want 0.6", got)
	}
}

func TestSimPriceFeedFeedsTracker(t *testing.T) {
	tracker := strategy.NewMomentumTracker(20)
	cfg := SimConfig{Seed: 1}
	f := NewSimPriceFeed([]string{"btcusdt", "ethusdt"}, cfg, tracker, nil, discardLogger())

	out := make(chan domain.PriceObservation, 4)
	f.Step(context.Background(), out)
	if len(out) != 2 {
		t.Fatalf("ticks = %d", len(out))
	}
	tick := <-out
	if tick.Symbol != "btcusdt" || tick.Volume <= simBaseVolume {
		t.Fatalf("tick = %+v", tick)
	}
	if p, ok := tracker.Latest("btcusdt"); !ok || p != tick.Price {
		t.Fatalf("tracker latest = %v, %v", p, ok)
	}
}
