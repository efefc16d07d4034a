package council

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// stage holds the fixed sampling parameters of one council member.
type stage struct {
	name        string
	temperature float64
	maxTokens   int
}

var (
	sentimentStage  = stage{name: "sentiment", temperature: 0.3, maxTokens: 2048}
	confidenceStage = stage{name: "confidence", temperature: 0.3, maxTokens: 4096}
	judgeStage      = stage{name: "judge", temperature: 0.2, maxTokens: 2048}
)

var (
	sentimentRules = NewExtractor(
		Rule{Field: "sentiment", Pattern: sentimentPattern, Default: "NEUTRAL"},
		Rule{Field: "reasoning", Pattern: reasoningPattern},
	)
	confidenceRules = NewExtractor(
		Rule{Field: "confidence", Pattern: confidencePattern, Default: "0"},
		Rule{Field: "reasoning", Pattern: reasoningPattern},
	)
	judgeRules = NewExtractor(
		Rule{Field: "decision", Pattern: decisionPattern, Default: "SKIP"},
		Rule{Field: "size", Pattern: sizePattern},
		Rule{Field: "reasoning", Pattern: judgeReasoningPattern},
	)
)

// call runs prompt on model. When the call fails and a fallback model is
// configured, it is retried once on the fallback. The returned model is the
// last one tried.
func (c *Council) call(ctx context.Context, st stage, model, prompt string) (domain.ChatResponse, string, error) {
	req := domain.ChatRequest{
		Model:       model,
		Messages:    []domain.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: st.temperature,
		MaxTokens:   st.maxTokens,
	}
	resp, err := c.backend.Chat(ctx, req)
	if err == nil || c.cfg.ModelFallback == "" || c.cfg.ModelFallback == model || ctx.Err() != nil {
		return resp, model, err
	}

	c.logger.Warn("council stage failed, retrying on fallback model",
		slog.String("stage", st.name),
		slog.String("model", model),
		slog.String("fallback", c.cfg.ModelFallback),
		slog.String("error", err.Error()),
	)
	req.Model = c.cfg.ModelFallback
	resp, err = c.backend.Chat(ctx, req)
	return resp, c.cfg.ModelFallback, err
}

// Sentiment classifies the signal. Failures yield NEUTRAL.
func (c *Council) Sentiment(ctx context.Context, sig domain.DivergenceSignal) domain.SentimentResult {
	start := time.Now()
	resp, model, err := c.call(ctx, sentimentStage, c.cfg.ModelSentiment, sentimentPrompt(sig))
	latency := time.Since(start)
	c.metrics.StageLatency(sentimentStage.name, latency)

	if err != nil {
		c.stageError(sentimentStage, err)
		return domain.SentimentResult{
			Sentiment: domain.SentimentNeutral,
			Reasoning: errReasoning(err),
			Model:     model,
			Latency:   latency,
		}
	}

	ex := sentimentRules.Extract(resp)
	s, perr := domain.ParseSentiment(ex.Get("sentiment").Value)
	if perr != nil {
		s = domain.SentimentNeutral
	}
	return domain.SentimentResult{
		Sentiment: s,
		Reasoning: ex.Reasoning("reasoning"),
		Model:     model,
		Latency:   latency,
	}
}

// Confidence grades the opportunity in [0, 1]. Failures and unparseable
// values yield 0.
func (c *Council) Confidence(ctx context.Context, sig domain.DivergenceSignal, s domain.SentimentResult) domain.ConfidenceGrade {
	start := time.Now()
	resp, model, err := c.call(ctx, confidenceStage, c.cfg.ModelConfidence, confidencePrompt(sig, s))
	latency := time.Since(start)
	c.metrics.StageLatency(confidenceStage.name, latency)

	if err != nil {
		c.stageError(confidenceStage, err)
		return domain.ConfidenceGrade{Reasoning: errReasoning(err), Model: model, Latency: latency}
	}

	ex := confidenceRules.Extract(resp)
	conf, perr := strconv.ParseFloat(strings.TrimRight(ex.Get("confidence").Value, "."), 64)
	if perr != nil || math.IsNaN(conf) {
		conf = 0
	}
	return domain.ConfidenceGrade{
		Confidence: math.Max(0, math.Min(1, conf)),
		Reasoning:  ex.Reasoning("reasoning"),
		Model:      model,
		Latency:    latency,
	}
}

// Judge makes the final TRADE/SKIP call. A TRADE needs a positive size,
// which is clamped to [MinTradeSize, MaxPositionSize].
func (c *Council) Judge(ctx context.Context, sig domain.DivergenceSignal, s domain.SentimentResult, g domain.ConfidenceGrade, available float64) domain.TradeVerdict {
	start := time.Now()
	prompt := judgePrompt(sig, s, g, c.cfg.MaxPositionSize, available)
	resp, model, err := c.call(ctx, judgeStage, c.cfg.ModelJudge, prompt)
	latency := time.Since(start)
	c.metrics.StageLatency(judgeStage.name, latency)

	if err != nil {
		c.stageError(judgeStage, err)
		return domain.TradeVerdict{Action: domain.ActionSkip, Reasoning: errReasoning(err), Model: model, Latency: latency}
	}

	ex := judgeRules.Extract(resp)
	action, size := c.sizeVerdict(ex.Get("decision").Value, ex.Get("size"))
	return domain.TradeVerdict{
		Action:    action,
		SizeUSD:   size,
		Reasoning: ex.Reasoning("reasoning"),
		Model:     model,
		Latency:   latency,
	}
}

// sizeVerdict applies the judge sizing rules. Anything but a TRADE with a
// positive, parseable size becomes SKIP with size 0.
func (c *Council) sizeVerdict(decision string, size Match) (domain.TradeAction, float64) {
	action, err := domain.ParseTradeAction(decision)
	if err != nil || action != domain.ActionTrade || !size.Found {
		return domain.ActionSkip, 0
	}
	v, err := strconv.ParseFloat(strings.TrimRight(size.Value, "."), 64)
	if err != nil || v <= 0 || math.IsNaN(v) {
		return domain.ActionSkip, 0
	}
	return domain.ActionTrade, math.Max(c.cfg.MinTradeSize, math.Min(v, c.cfg.MaxPositionSize))
}

func (c *Council) stageError(st stage, err error) {
	c.metrics.Error("council_" + st.name)
	c.logger.Error("council stage failed",
		slog.String("stage", st.name),
		slog.String("error", err.Error()),
	)
}

func errReasoning(err error) string {
	return domain.Truncate(fmt.Sprintf("Error: %v", err), domain.MaxReasoningLen)
}
