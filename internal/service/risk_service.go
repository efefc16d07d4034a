package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// RiskConfig holds the exposure limits.
type RiskConfig struct {
	MaxCapital       float64
	MaxPositionSize  float64
	MaxOpenPositions int
}

// RiskGate checks a proposed trade against the open book. It keeps no state
// of its own: every check reads the open trades from the store.
type RiskGate struct {
	trades domain.TradeStore
	cfg    RiskConfig
	logger *slog.Logger
}

// NewRiskGate creates a RiskGate.
func NewRiskGate(trades domain.TradeStore, cfg RiskConfig, logger *slog.Logger) *RiskGate {
	return &RiskGate{
		trades: trades,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk")),
	}
}

// CanTrade reports whether a trade of sizeUSD fits the limits. The checks run
// in order (open count, per-trade size, total exposure) and the first failure
// is returned as the reason. A store error is returned as-is; callers treat
// it as a block.
func (g *RiskGate) CanTrade(ctx context.Context, sizeUSD float64) (bool, string, error) {
	open, err := g.trades.GetOpenTrades(ctx)
	if err != nil {
		return false, "", fmt.Errorf("risk: get open trades: %w", err)
	}

	if len(open) >= g.cfg.MaxOpenPositions {
		return false, fmt.Sprintf("Max open positions reached (%d)", g.cfg.MaxOpenPositions), nil
	}
	if sizeUSD > g.cfg.MaxPositionSize {
		return false, fmt.Sprintf("Size $%.0f exceeds max $%.0f", sizeUSD, g.cfg.MaxPositionSize), nil
	}
	if total := exposure(open) + sizeUSD; total > g.cfg.MaxCapital {
		return false, fmt.Sprintf("Total exposure $%.0f exceeds max $%.0f", total, g.cfg.MaxCapital), nil
	}
	return true, "OK", nil
}

// AvailableCapital is max_capital minus open exposure, floored at zero.
func (g *RiskGate) AvailableCapital(ctx context.Context) (float64, error) {
	open, err := g.trades.GetOpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("risk: get open trades: %w", err)
	}
	return math.Max(0, g.cfg.MaxCapital-exposure(open)), nil
}

// OpenCount returns the number of unsettled trades.
func (g *RiskGate) OpenCount(ctx context.Context) (int, error) {
	open, err := g.trades.GetOpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("risk: get open trades: %w", err)
	}
	return len(open), nil
}

func exposure(open []domain.TradeRecord) float64 {
	var sum float64
	for _, t := range open {
		sum += t.SizeUSD
	}
	return sum
}
