// Package metrics exposes the agent's Prometheus instruments. A nil *Recorder
// is valid and records nothing, so components can be built without metrics in
// tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "polycouncil"

// Recorder holds every collector the pipeline updates.
type Recorder struct {
	ticks          *prometheus.CounterVec
	odds           *prometheus.CounterVec
	paired         *prometheus.CounterVec
	signals        *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	cooldownSkips  *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	orders         *prometheus.CounterVec
	riskBlocks     prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	openPositions  prometheus.Gauge
	availableCap   prometheus.Gauge
	totalPnL       prometheus.Gauge
	stageLatency   *prometheus.HistogramVec
	councilLatency prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "price_ticks_total",
			Help: "Price observations received per symbol",
		}, []string{"symbol"}),
		odds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "odds_updates_total",
			Help: "Odds observations accepted per symbol",
		}, []string{"symbol"}),
		paired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "paired_observations_total",
			Help: "Price ticks paired with cached odds",
		}, []string{"symbol"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_total",
			Help: "Divergence signals emitted",
		}, []string{"symbol", "direction"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_rejections_total",
			Help: "Paired observations rejected by a scorer gate",
		}, []string{"gate"}),
		cooldownSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cooldown_skips_total",
			Help: "Signals suppressed by the per-symbol cooldown",
		}, []string{"symbol"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "council_decisions_total",
			Help: "Council verdicts by action",
		}, []string{"action"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_total",
			Help: "Orders filled or placed",
		}, []string{"venue", "side"}),
		riskBlocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "risk_blocks_total",
			Help: "Approved trades blocked by the risk gate",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Recovered errors by kind",
		}, []string{"kind"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_price",
			Help: "Last exchange price per symbol",
		}, []string{"symbol"}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_positions",
			Help: "Open positions at the last status report",
		}),
		availableCap: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "available_capital_usd",
			Help: "Capital left under the exposure ceiling",
		}),
		totalPnL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "total_pnl_usd",
			Help: "Realized profit and loss",
		}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "council_stage_duration_seconds",
			Help:    "Inference latency per council stage",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		councilLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "council_duration_seconds",
			Help:    "End-to-end council latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

func (r *Recorder) PriceTick(symbol string, price float64) {
	if r == nil {
		return
	}
	r.ticks.WithLabelValues(symbol).Inc()
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) OddsUpdate(symbol string) {
	if r == nil {
		return
	}
	r.odds.WithLabelValues(symbol).Inc()
}

func (r *Recorder) Paired(symbol string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.paired.WithLabelValues(symbol).Add(float64(n))
}

func (r *Recorder) Signal(symbol, direction string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(symbol, direction).Inc()
}

func (r *Recorder) Rejection(gate string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(gate).Inc()
}

func (r *Recorder) CooldownSkip(symbol string) {
	if r == nil {
		return
	}
	r.cooldownSkips.WithLabelValues(symbol).Inc()
}

func (r *Recorder) Decision(action string, total time.Duration) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(action).Inc()
	r.councilLatency.Observe(total.Seconds())
}

func (r *Recorder) StageLatency(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) Order(venue, side string) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(venue, side).Inc()
}

func (r *Recorder) RiskBlock() {
	if r == nil {
		return
	}
	r.riskBlocks.Inc()
}

// Error counts a recovered failure, e.g. "odds_poll" or "store".
func (r *Recorder) Error(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Status records the periodic portfolio snapshot.
func (r *Recorder) Status(open int, available, pnl float64) {
	if r == nil {
		return
	}
	r.openPositions.Set(float64(open))
	r.availableCap.Set(available)
	r.totalPnL.Set(pnl)
}
