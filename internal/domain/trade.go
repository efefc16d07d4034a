package domain

import "time"

// MaxReasoningLen bounds the council rationale stored with a trade.
const MaxReasoningLen = 500

// TradeRecord is a persisted position opened by the execution router.
type TradeRecord struct {
	ID               int64       `json:"id"`
	OrderID          string      `json:"order_id"`
	Symbol           string      `json:"symbol"`
	ConditionID      string      `json:"condition_id"`
	TokenID          string      `json:"token_id"`
	Side             OrderSide   `json:"side"`
	SizeUSD          float64     `json:"size_usd"`
	EntryPrice       float64     `json:"entry_price"`
	ExitPrice        *float64    `json:"exit_price,omitempty"`
	PnL              *float64    `json:"pnl,omitempty"`
	IsPaper          bool        `json:"is_paper"`
	SignalScore      float64     `json:"signal_score"`
	Sentiment        Sentiment   `json:"sentiment"`
	Confidence       float64     `json:"confidence"`
	Verdict          TradeAction `json:"verdict"`
	CouncilReasoning string      `json:"council_reasoning"`
	OpenedAt         time.Time   `json:"opened_at"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty"`
}

// IsOpen reports whether the trade has not been settled.
func (t TradeRecord) IsOpen() bool { return t.ClosedAt == nil }

// PnLSummary aggregates realized results over all trades.
type PnLSummary struct {
	TotalTrades int64   `json:"total_trades"`
	Wins        int64   `json:"wins"`
	Losses      int64   `json:"losses"`
	Open        int64   `json:"open"`
	TotalPnL    float64 `json:"total_pnl"`
	AvgPnL      float64 `json:"avg_pnl"`
	TotalVolume float64 `json:"total_volume"`
	WinRate     float64 `json:"win_rate"`
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
