package domain

import "time"

// SentimentResult is the output of the sentiment stage.
type SentimentResult struct {
	Sentiment Sentiment     `json:"sentiment"`
	Reasoning string        `json:"reasoning"`
	Model     string        `json:"model"`
	Latency   time.Duration `json:"latency_ns"`
}

// ConfidenceGrade is the output of the confidence stage. Confidence is always
// within [0, 1].
type ConfidenceGrade struct {
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning"`
	Model      string        `json:"model"`
	Latency    time.Duration `json:"latency_ns"`
}

// TradeVerdict is the output of the judge stage (or the short-circuit).
// SizeUSD is positive if and only if Action is ActionTrade.
type TradeVerdict struct {
	Action    TradeAction   `json:"action"`
	SizeUSD   float64       `json:"size_usd"`
	Reasoning string        `json:"reasoning"`
	Model     string        `json:"model"`
	Latency   time.Duration `json:"latency_ns"`
}

// Decision bundles a signal with every stage result.
type Decision struct {
	Signal       DivergenceSignal `json:"signal"`
	Sentiment    SentimentResult  `json:"sentiment"`
	Confidence   ConfidenceGrade  `json:"confidence"`
	Verdict      TradeVerdict     `json:"verdict"`
	TotalLatency time.Duration    `json:"total_latency_ns"`
}
