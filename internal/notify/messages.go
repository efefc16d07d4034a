package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// TradeExecuted renders an order fill.
func TradeExecuted(d domain.Decision, r domain.OrderResult) (title, message string) {
	venue := "LIVE"
	if r.IsPaper {
		venue = "PAPER"
	}
	title = fmt.Sprintf("%s %s %s", venue, r.Side, strings.ToUpper(d.Signal.Symbol))
	message = fmt.Sprintf("Size: $%.2f @ %.3f\nEdge: %+.2f%% | Score: %.2f\nConfidence: %.2f | Sentiment: %s\nOrder: %s\n%s",
		r.SizeUSD, r.Price, d.Signal.EdgePct, d.Signal.Score,
		d.Confidence.Confidence, d.Sentiment.Sentiment, r.OrderID, d.Verdict.Reasoning)
	return title, message
}

// TradeClosed renders a settlement.
func TradeClosed(t domain.TradeRecord, exit, pnl float64) (title, message string) {
	title = fmt.Sprintf("Closed %s %s", t.Side, strings.ToUpper(t.Symbol))
	message = fmt.Sprintf("Entry: %.3f | Exit: %.3f\nPnL: %+.2f USD\nOrder: %s", t.EntryPrice, exit, pnl, t.OrderID)
	return title, message
}

// RiskBlocked renders a rejected trade.
func RiskBlocked(symbol string, size float64, reason string) (title, message string) {
	return "Risk blocked " + strings.ToUpper(symbol), fmt.Sprintf("Size: $%.2f\nReason: %s", size, reason)
}

// AgentStarted renders the startup banner.
func AgentStarted(mode, tradingMode string, symbols []string) (title, message string) {
	return "Agent started", fmt.Sprintf("Mode: %s | Trading: %s\nSymbols: %s", mode, tradingMode, strings.Join(symbols, ", "))
}
