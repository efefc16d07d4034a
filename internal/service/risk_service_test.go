package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

func TestRiskGateCanTrade(t *testing.T) {
	cfg := RiskConfig{MaxCapital: 100, MaxPositionSize: 50, MaxOpenPositions: 2}
	tests := []struct {
		name   string
		open   []float64
		size   float64
		ok     bool
		reason string
	}{
		{"empty book", nil, 20, true, "OK"},
		{"open count first", []float64{10, 10}, 500, false, "Max open positions reached (2)"},
		{"size cap", []float64{10}, 60, false, "Size $60 exceeds max $50"},
		{"exposure", []float64{70}, 40, false, "Total exposure $110 exceeds max $100"},
		{"exactly at capital", []float64{60}, 40, true, "OK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStore{}
			for i, s := range tt.open {
				_, _ = st.LogTrade(context.Background(), openTrade(string(rune('a'+i)), domain.OrderSideBuy, s, 0.5))
			}
			g := NewRiskGate(st, cfg, discardLogger())
			ok, reason, err := g.CanTrade(context.Background(), tt.size)
			if err != nil {
				t.Fatalf("CanTrade: %v", err)
			}
			if ok != tt.ok || reason != tt.reason {
				t.Fatalf("got (%v, %q), want (%v, %q)", ok, reason, tt.ok, tt.reason)
			}
		})
	}
}

func TestRiskGateCapital(t *testing.T) {
	st := &fakeStore{}
	g := NewRiskGate(st, RiskConfig{MaxCapital: 100, MaxPositionSize: 100, MaxOpenPositions: 5}, discardLogger())
	ctx := context.Background()

	_, _ = st.LogTrade(ctx, openTrade("a", domain.OrderSideBuy, 30, 0.5))
	_, _ = st.LogTrade(ctx, openTrade("b", domain.OrderSideSell, 50, 0.5))
	if got, _ := g.AvailableCapital(ctx); got != 20 {
		t.Fatalf("available = %v, want 20", got)
	}
	if n, _ := g.OpenCount(ctx); n != 2 {
		t.Fatalf("open = %d", n)
	}

	_, _ = st.LogTrade(ctx, openTrade("c", domain.OrderSideBuy, 80, 0.5))
	if got, _ := g.AvailableCapital(ctx); got != 0 {
		t.Fatalf("available = %v, want floor at 0", got)
	}
}

func TestRiskGateStoreError(t *testing.T) {
	boom := errors.New("db down")
	g := NewRiskGate(&fakeStore{openErr: boom}, RiskConfig{MaxCapital: 1, MaxPositionSize: 1, MaxOpenPositions: 1}, discardLogger())
	ok, _, err := g.CanTrade(context.Background(), 1)
	if ok || !errors.Is(err, boom) {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}
