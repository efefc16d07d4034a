package council

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// scriptedBackend answers by model name and records every call.
type scriptedBackend struct {
	mu      sync.Mutex
	replies map[string]domain.ChatResponse
	errs    map[string]error
	calls   []domain.ChatRequest
}

func (b *scriptedBackend) Chat(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, req)
	if err, ok := b.errs[req.Model]; ok {
		return domain.ChatResponse{}, err
	}
	return b.replies[req.Model], nil
}

func content(s string) domain.ChatResponse { return domain.ChatResponse{Content: s} }

func testConfig() Config {
	return Config{
		ModelSentiment:  "sent",
		ModelConfidence: "conf",
		ModelJudge:      "judge",
		MinConfidence:   0.6,
		MinTradeSize:    5,
		MaxPositionSize: 50,
	}
}

func testSignal() domain.DivergenceSignal {
	return domain.DivergenceSignal{
		Symbol: "btcusdt", Price: 87000, MomentumPct: 1.2, OddsMidpoint: 0.45,
		ImpliedFairOdds: 0.486, EdgePct: 3.6, Score: 0.7, Direction: domain.DirectionUp,
		DetectedAt: time.Now(),
	}
}

func newCouncil(b domain.InferenceBackend, cfg Config) *Council {
	return New(b, cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEvaluateFullPipeline(t *testing.T) {
	b := &scriptedBackend{replies: map[string]domain.ChatResponse{
		"sent":  content("SENTIMENT: BULLISH\nREASONING: strong upward momentum"),
		"conf":  content("CONFIDENCE: 0.82\nREASONING: edge well above fees"),
		"judge": content("DECISION: TRADE\nSIZE: $30\nREASONING: aligned signals"),
	}}
	d := newCouncil(b, testConfig()).Evaluate(context.Background(), testSignal(), 1000)

	if len(b.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(b.calls))
	}
	if d.Sentiment.Sentiment != domain.SentimentBullish || d.Confidence.Confidence != 0.82 {
		t.Fatalf("stages = %+v %+v", d.Sentiment, d.Confidence)
	}
	if d.Verdict.Action != domain.ActionTrade || d.Verdict.SizeUSD != 30 || d.Verdict.Model != "judge" {
		t.Fatalf("verdict = %+v", d.Verdict)
	}
	if d.Verdict.Reasoning != "aligned signals" {
		t.Fatalf("reasoning = %q", d.Verdict.Reasoning)
	}

	want := []struct {
		model string
		temp  float64
		max   int
	}{{"sent", 0.3, 2048}, {"conf", 0.3, 4096}, {"judge", 0.2, 2048}}
	for i, w := range want {
		c := b.calls[i]
		if c.Model != w.model || c.Temperature != w.temp || c.MaxTokens != w.max {
			t.Errorf("call %d = %+v, want %+v", i, c, w)
		}
	}
	if !strings.Contains(b.calls[0].Messages[0].Content, "BTCUSDT | Price: $87,000.00 | Momentum: +1.20% | Direction: UP") {
		t.Errorf("sentiment prompt:\n%s", b.calls[0].Messages[0].Content)
	}
	if !strings.Contains(b.calls[2].Messages[0].Content, "Max size: $50 | Available: $1000 | Fees: ~0.44%") {
		t.Errorf("judge prompt:\n%s", b.calls[2].Messages[0].Content)
	}
	if !strings.Contains(b.calls[1].Messages[0].Content, "Sentiment: BULLISH \u2014 strong upward momentum\n") {
		t.Errorf("confidence prompt:\n%s", b.calls[1].Messages[0].Content)
	}
	if !strings.Contains(b.calls[2].Messages[0].Content, "Confidence: 0.82 \u2014 edge well above fees\n") {
		t.Errorf("judge prompt:\n%s", b.calls[2].Messages[0].Content)
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	b := &scriptedBackend{replies: map[string]domain.ChatResponse{
		"sent": content("SENTIMENT: BEARISH\nREASONING: x"),
		"conf": content("CONFIDENCE: 0.4\nREASONING: noise"),
	}}
	d := newCouncil(b, testConfig()).Evaluate(context.Background(), testSignal(), 1000)

	if len(b.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(b.calls))
	}
	v := d.Verdict
	if v.Action != domain.ActionSkip || v.SizeUSD != 0 || v.Model != ShortCircuitModel || v.Latency != 0 {
		t.Fatalf("verdict = %+v", v)
	}
	if v.Reasoning != "Short-circuit: confidence 0.40 < 0.6" {
		t.Fatalf("reasoning = %q", v.Reasoning)
	}
}

func TestBackendErrorsFailSafe(t *testing.T) {
	boom := errors.New("connection refused")
	b := &scriptedBackend{errs: map[string]error{"sent": boom, "conf": boom}}
	d := newCouncil(b, testConfig()).Evaluate(context.Background(), testSignal(), 1000)

	if d.Sentiment.Sentiment != domain.SentimentNeutral || d.Sentiment.Reasoning != "Error: connection refused" || d.Sentiment.Model != "sent" {
		t.Fatalf("sentiment = %+v", d.Sentiment)
	}
	if d.Confidence.Confidence != 0 {
		t.Fatalf("confidence = %v", d.Confidence.Confidence)
	}
	if d.Verdict.Action != domain.ActionSkip || d.Verdict.Model != ShortCircuitModel {
		t.Fatalf("verdict = %+v", d.Verdict)
	}
}

func TestJudgeErrorVerdict(t *testing.T) {
	b := &scriptedBackend{
		replies: map[string]domain.ChatResponse{
			"sent": content("SENTIMENT: BULLISH\nREASONING: x"),
			"conf": content("CONFIDENCE: 0.9\nREASONING: y"),
		},
		errs: map[string]error{"judge": errors.New("timeout")},
	}
	d := newCouncil(b, testConfig()).Evaluate(context.Background(), testSignal(), 1000)
	if d.Verdict.Action != domain.ActionSkip || d.Verdict.SizeUSD != 0 || d.Verdict.Reasoning != "Error: timeout" {
		t.Fatalf("verdict = %+v", d.Verdict)
	}
}

func TestFallbackModelRetriedOnce(t *testing.T) {
	cfg := testConfig()
	cfg.ModelFallback = "backup"
	b := &scriptedBackend{
		replies: map[string]domain.ChatResponse{"backup": content("SENTIMENT: BEARISH\nREASONING: via backup")},
		errs:    map[string]error{"sent": errors.New("503")},
	}
	s := newCouncil(b, cfg).Sentiment(context.Background(), testSignal())
	if s.Sentiment != domain.SentimentBearish || s.Model != "backup" {
		t.Fatalf("sentiment = %+v", s)
	}
	if len(b.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(b.calls))
	}
}

func TestJudgeSizing(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		action domain.TradeAction
		size   float64
	}{
		{"within bounds", "DECISION: TRADE\nSIZE: 20\nREASONING: ok", domain.ActionTrade, 20},
		{"clamped up", "DECISION: TRADE\nSIZE: $2\nREASONING: ok", domain.ActionTrade, 5},
		{"clamped down", "DECISION: TRADE\nSIZE: $500\nREASONING: ok", domain.ActionTrade, 50},
		{"zero size", "DECISION: TRADE\nSIZE: 0\nREASONING: ok", domain.ActionSkip, 0},
		{"missing size", "DECISION: TRADE\nREASONING: ok", domain.ActionSkip, 0},
		{"bad size", "DECISION: TRADE\nSIZE: 1.2.3\nREASONING: ok", domain.ActionSkip, 0},
		{"skip carries zero", "DECISION: SKIP\nSIZE: 25\nREASONING: no", domain.ActionSkip, 0},
		{"no decision", "I am not sure.", domain.ActionSkip, 0},
		{"lowercase", "decision: trade\nsize: 12.5\nreasoning: ok", domain.ActionTrade, 12.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedBackend{replies: map[string]domain.ChatResponse{"judge": content(tt.reply)}}
			v := newCouncil(b, testConfig()).Judge(context.Background(), testSignal(),
				domain.SentimentResult{}, domain.ConfidenceGrade{Confidence: 0.9}, 1000)
			if v.Action != tt.action || v.SizeUSD != tt.size {
				t.Fatalf("got %s/%v, want %s/%v", v.Action, v.SizeUSD, tt.action, tt.size)
			}
		})
	}
}

func TestConfidenceClampAndParse(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"CONFIDENCE: 1.7\nREASONING: a", 1},
		{"CONFIDENCE: 0.55\nREASONING: a", 0.55},
		{"CONFIDENCE: 0.8.\nREASONING: x", 0.8},
		{"CONFIDENCE: ..\nREASONING: a", 0},
		{"no structure", 0},
	}
	for _, tt := range tests {
		b := &scriptedBackend{replies: map[string]domain.ChatResponse{"conf": content(tt.reply)}}
		g := newCouncil(b, testConfig()).Confidence(context.Background(), testSignal(), domain.SentimentResult{})
		if g.Confidence != tt.want {
			t.Errorf("%q: confidence = %v, want %v", tt.reply, g.Confidence, tt.want)
		}
	}
}

func TestThinkingChannelFallback(t *testing.T) {
	// Answer channel empty: structure lives only in the thinking trace.
	b := &scriptedBackend{replies: map[string]domain.ChatResponse{
		"sent": {Thinking: "Let me see... SENTIMENT: BEARISH\nREASONING: falling odds"},
	}}
	s := newCouncil(b, testConfig()).Sentiment(context.Background(), testSignal())
	if s.Sentiment != domain.SentimentBearish || s.Reasoning != "falling odds" {
		t.Fatalf("sentiment = %+v", s)
	}
}
