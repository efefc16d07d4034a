// Package council runs a divergence signal past three language models in
// sequence (sentiment, confidence, judge) and turns their free-text answers
// into a trade decision.
package council

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

// ShortCircuitModel marks verdicts synthesized without a judge call.
const ShortCircuitModel = "short-circuit"

// Config selects the models and thresholds.
type Config struct {
	ModelSentiment  string
	ModelConfidence string
	ModelJudge      string
	ModelFallback   string // optional; retried once when a stage call fails

	MinConfidence   float64 // below this the judge is skipped
	MinTradeSize    float64
	MaxPositionSize float64
}

// Council is the decision orchestrator. It is safe for concurrent use if the
// backend is.
type Council struct {
	backend domain.InferenceBackend
	cfg     Config
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// New creates a Council.
func New(backend domain.InferenceBackend, cfg Config, rec *metrics.Recorder, logger *slog.Logger) *Council {
	return &Council{
		backend: backend,
		cfg:     cfg,
		metrics: rec,
		logger:  logger.With(slog.String("component", "council")),
	}
}

// Evaluate runs the pipeline for one signal. It never fails: backend errors
// degrade to the fail-safe values of the affected stage.
func (c *Council) Evaluate(ctx context.Context, sig domain.DivergenceSignal, availableCapital float64) domain.Decision {
	start := time.Now()
	log := c.logger.With(slog.String("symbol", sig.Symbol))

	sent := c.Sentiment(ctx, sig)
	log.Info("sentiment",
		slog.String("sentiment", sent.Sentiment.String()),
		slog.String("model", sent.Model),
		slog.Duration("latency", sent.Latency),
	)

	conf := c.Confidence(ctx, sig, sent)
	log.Info("confidence",
		slog.Float64("confidence", conf.Confidence),
		slog.String("model", conf.Model),
		slog.Duration("latency", conf.Latency),
	)

	var verdict domain.TradeVerdict
	if conf.Confidence < c.cfg.MinConfidence {
		verdict = domain.TradeVerdict{
			Action:    domain.ActionSkip,
			Reasoning: fmt.Sprintf("Short-circuit: confidence %.2f < %v", conf.Confidence, c.cfg.MinConfidence),
			Model:     ShortCircuitModel,
		}
		log.Info("short-circuit skip",
			slog.Float64("confidence", conf.Confidence),
			slog.Float64("threshold", c.cfg.MinConfidence),
		)
	} else {
		verdict = c.Judge(ctx, sig, sent, conf, availableCapital)
		log.Info("verdict",
			slog.String("action", verdict.Action.String()),
			slog.Float64("size_usd", verdict.SizeUSD),
			slog.String("model", verdict.Model),
			slog.Duration("latency", verdict.Latency),
		)
	}

	return domain.Decision{
		Signal:       sig,
		Sentiment:    sent,
		Confidence:   conf,
		Verdict:      verdict,
		TotalLatency: time.Since(start),
	}
}
