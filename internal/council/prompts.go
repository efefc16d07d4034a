package council

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// reasonSep joins a stage verdict to its reasoning inside later prompts.
const reasonSep = " \u2014 "

func header(sig domain.DivergenceSignal) string {
	return fmt.Sprintf("%s | Price: $%s | Momentum: %+.2f%%",
		strings.ToUpper(sig.Symbol), domain.FormatAmount(sig.Price), sig.MomentumPct)
}

func oddsLine(sig domain.DivergenceSignal) string {
	return fmt.Sprintf("Odds: %.2f | Fair: %.2f | Edge: %+.2f%%",
		sig.OddsMidpoint, sig.ImpliedFairOdds, sig.EdgePct)
}

func sentimentPrompt(sig domain.DivergenceSignal) string {
	var b strings.Builder
	b.WriteString("Crypto market sentiment analyst. Classify the sentiment for this signal.\n\n")
	fmt.Fprintf(&b, "%s | Direction: %s\n", header(sig), sig.Direction)
	b.WriteString(oddsLine(sig) + "\n\n")
	b.WriteString("Output exactly two lines, nothing else:\n")
	b.WriteString("SENTIMENT: [BULLISH or BEARISH or NEUTRAL]\n")
	b.WriteString("REASONING: [one sentence why]\n")
	return b.String()
}

func confidencePrompt(sig domain.DivergenceSignal, s domain.SentimentResult) string {
	var b strings.Builder
	b.WriteString("Crypto trade confidence grader. Rate if this opportunity is genuine or noise.\n\n")
	b.WriteString(header(sig) + "\n")
	fmt.Fprintf(&b, "%s | Score: %.2f\n", oddsLine(sig), sig.Score)
	fmt.Fprintf(&b, "Sentiment: %s%s%s\n\n", s.Sentiment, reasonSep, s.Reasoning)
	b.WriteString("Consider: edge vs 0.44% fees, momentum sustainability, sentiment alignment.\n\n")
	b.WriteString("Output exactly two lines, nothing else:\n")
	b.WriteString("CONFIDENCE: [number between 0.0 and 1.0]\n")
	b.WriteString("REASONING: [one sentence why]\n")
	return b.String()
}

func judgePrompt(sig domain.DivergenceSignal, s domain.SentimentResult, c domain.ConfidenceGrade, maxSize, available float64) string {
	var b strings.Builder
	b.WriteString("Final trade judge. Decide TRADE or SKIP.\n\n")
	b.WriteString(header(sig) + "\n")
	fmt.Fprintf(&b, "%s | Score: %.2f\n", oddsLine(sig), sig.Score)
	fmt.Fprintf(&b, "Sentiment: %s%s%s\n", s.Sentiment, reasonSep, s.Reasoning)
	fmt.Fprintf(&b, "Confidence: %.2f%s%s\n", c.Confidence, reasonSep, c.Reasoning)
	fmt.Fprintf(&b, "Max size: $%.0f | Available: $%.0f | Fees: ~0.44%%\n\n", maxSize, available)
	b.WriteString("Output exactly three lines, nothing else:\n")
	b.WriteString("DECISION: [TRADE or SKIP]\n")
	fmt.Fprintf(&b, "SIZE: [dollar amount between 5 and %.0f, or 0 if SKIP]\n", maxSize)
	b.WriteString("REASONING: [one sentence why]\n")
	return b.String()
}
