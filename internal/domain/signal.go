package domain

import "time"

// DivergenceSignal is emitted when exchange momentum implies a fair probability
// far enough from the market midpoint. Each signal is evaluated exactly once.
type DivergenceSignal struct {
	Symbol          string    `json:"symbol"`
	Price           float64   `json:"price"`
	MomentumPct     float64   `json:"momentum_pct"`
	OddsMidpoint    float64   `json:"odds_midpoint"`
	ImpliedFairOdds float64   `json:"implied_fair_odds"`
	EdgePct         float64   `json:"edge_pct"`
	Score           float64   `json:"signal_score"`
	Direction       Direction `json:"direction"`
	Market          MarketRef `json:"market"`
	DetectedAt      time.Time `json:"detected_at"`
}

// SignalRecord is the persisted form of an evaluated signal.
type SignalRecord struct {
	Signal        DivergenceSignal
	CouncilAction TradeAction
	Timestamp     time.Time
}
