package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
)

// SimConfig tunes the synthetic markets and feeds.
type SimConfig struct {
	MarketsPerSymbol int
	StrikeSpreadPct  float64
	PriceLagSeconds  float64
	NoisePct         float64
	PriceInterval    time.Duration
	OddsInterval     time.Duration
	BasePrices       map[string]float64
	Seed             int64 // 0 picks a random seed
}

var defaultBasePrices = map[string]float64{
	"btcusdt": 87000,
	"ethusdt": 2400,
	"solusdt": 140,
}

// BasePrice is the starting price for symbol when no tick has been seen.
func (c SimConfig) BasePrice(symbol string) float64 {
	if p, ok := c.BasePrices[symbol]; ok && p > 0 {
		return p
	}
	if p, ok := defaultBasePrices[symbol]; ok {
		return p
	}
	return 1000
}

func (c SimConfig) rng() *rand.Rand {
	if c.Seed != 0 {
		return rand.New(rand.NewPCG(uint64(c.Seed), uint64(c.Seed)^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// strikeOffsets returns the fractional strike offsets for n markets.
func strikeOffsets(n int, spread float64) []float64 {
	switch {
	case n <= 1:
		return []float64{0}
	case n == 2:
		return []float64{-spread, spread}
	}
	offs := []float64{-spread, 0, spread}
	for j := 3; j < n; j++ {
		offs = append(offs, spread*float64(j-1))
	}
	return offs
}

// SimulatedMarkets builds synthetic "above strike" markets around the
// current price of each symbol. latest may be nil.
func SimulatedMarkets(symbols []string, cfg SimConfig, latest func(string) (float64, bool)) []domain.MarketRef {
	spread := cfg.StrikeSpreadPct / 100
	var out []domain.MarketRef
	for _, sym := range symbols {
		price := cfg.BasePrice(sym)
		if latest != nil {
			if p, ok := latest(sym); ok && p > 0 {
				price = p
			}
		}
		ticker := strings.ToUpper(strings.ReplaceAll(sym, "usdt", ""))
		for i, off := range strikeOffsets(cfg.MarketsPerSymbol, spread) {
			strike := math.Round(price*(1+off)*100) / 100
			out = append(out, domain.MarketRef{
				ConditionID: fmt.Sprintf("sim-%s-%d", sym, i),
				TokenID:     fmt.Sprintf("sim-tok-%s-%d", sym, i),
				Symbol:      sym,
				Question:    fmt.Sprintf("Will %s be above $%s in 15 min?", ticker, domain.FormatAmount(strike)),
				Outcome:     "Yes",
			})
		}
	}
	return out
}

// StrikeFromQuestion parses the dollar strike out of a simulated market
// question such as "Will BTC be above $87,000.00 in 15 min?".
func StrikeFromQuestion(q string) (float64, bool) {
	_, after, ok := strings.Cut(q, "$")
	if !ok {
		return 0, false
	}
	num, _, _ := strings.Cut(after, " ")
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

const (
	simBaseVolume = 1_000_000
	simTickVolume = 1_000
)

// SimPriceFeed emits a random walk per symbol in place of the exchange
// stream.
type SimPriceFeed struct {
	symbols []string
	prices  map[string]float64
	volumes map[string]float64
	cfg     SimConfig
	rng     *rand.Rand
	tracker PriceRecorder
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewSimPriceFeed creates a random-walk feed starting from the base prices.
func NewSimPriceFeed(symbols []string, cfg SimConfig, tracker PriceRecorder, rec *metrics.Recorder, logger *slog.Logger) *SimPriceFeed {
	prices := make(map[string]float64, len(symbols))
	volumes := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		prices[s] = cfg.BasePrice(s)
		volumes[s] = simBaseVolume
	}
	return &SimPriceFeed{
		symbols: symbols,
		prices:  prices,
		volumes: volumes,
		cfg:     cfg,
		rng:     cfg.rng(),
		tracker: tracker,
		metrics: rec,
		logger:  logger.With(slog.String("component", "sim_price_feed")),
	}
}

// Run emits one tick per symbol per interval until ctx is cancelled.
func (f *SimPriceFeed) Run(ctx context.Context, out chan<- domain.PriceObservation) error {
	interval := f.cfg.PriceInterval
	if interval <= 0 {
		interval = time.Second
	}
	f.logger.Info("simulated price feed started", slog.Any("symbols", f.symbols))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		f.Step(ctx, out)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step advances every symbol by one random-walk tick.
func (f *SimPriceFeed) Step(ctx context.Context, out chan<- domain.PriceObservation) {
	now := time.Now().UTC()
	for _, sym := range f.symbols {
		chg := f.rng.NormFloat64()*0.3 + 0.03
		price := f.prices[sym] * (1 + chg/100)
		f.prices[sym] = price
		// Rolling total grows by a lognormal per-tick amount so volume spikes occur.
		f.volumes[sym] += simTickVolume * math.Exp(f.rng.NormFloat64()*0.6)
		emitPrice(ctx, f.tracker, f.metrics, domain.PriceObservation{
			Symbol:    sym,
			Price:     price,
			Volume:    f.volumes[sym],
			Change24h: chg,
			Timestamp: now,
		}, out)
	}
}

// SimOddsFeed derives odds for simulated markets from a lagged copy of the
// price, so odds trail the exchange and divergences appear.
type SimOddsFeed struct {
	markets []domain.MarketRef
	strikes map[string]float64
	cfg     SimConfig
	rng     *rand.Rand
	latest  func(string) (float64, bool)
	buffers map[string][]float64
	depth   int
	logger  *slog.Logger
}

// NewSimOddsFeed creates a lagged odds feed. latest supplies the current
// price per symbol.
func NewSimOddsFeed(markets []domain.MarketRef, cfg SimConfig, latest func(string) (float64, bool), logger *slog.Logger) *SimOddsFeed {
	interval := cfg.OddsInterval
	if interval <= 0 {
		interval = time.Second
	}
	lagTicks := max(1, int(cfg.PriceLagSeconds/interval.Seconds()))

	strikes := make(map[string]float64)
	buffers := make(map[string][]float64)
	for _, m := range markets {
		if k, ok := StrikeFromQuestion(m.Question); ok {
			strikes[m.TokenID] = k
		}
		buffers[m.Symbol] = nil
	}
	return &SimOddsFeed{
		markets: markets,
		strikes: strikes,
		cfg:     cfg,
		rng:     cfg.rng(),
		latest:  latest,
		buffers: buffers,
		depth:   lagTicks + 1,
		logger:  logger.With(slog.String("component", "sim_odds_feed")),
	}
}

// Run emits odds for every market once per interval.
func (f *SimOddsFeed) Run(ctx context.Context, out chan<- domain.OddsObservation) error {
	interval := f.cfg.OddsInterval
	if interval <= 0 {
		interval = time.Second
	}
	f.logger.Info("simulated odds feed started", slog.Int("markets", len(f.markets)), slog.Int("lag_depth", f.depth))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, obs := range f.Step() {
			select {
			case out <- obs:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step records the current prices into the lag buffers and returns one
// snapshot per market with a parseable strike.
func (f *SimOddsFeed) Step() []domain.OddsObservation {
	for sym, buf := range f.buffers {
		price := f.cfg.BasePrice(sym)
		if f.latest != nil {
			if p, ok := f.latest(sym); ok && p > 0 {
				price = p
			}
		}
		buf = append(buf, price)
		if len(buf) > f.depth {
			buf = buf[len(buf)-f.depth:]
		}
		f.buffers[sym] = buf
	}

	noise := f.cfg.NoisePct / 100
	now := time.Now().UTC()
	out := make([]domain.OddsObservation, 0, len(f.markets))
	for _, m := range f.markets {
		strike, ok := f.strikes[m.TokenID]
		if !ok || strike == 0 {
			continue
		}
		buf := f.buffers[m.Symbol]
		if len(buf) == 0 {
			continue
		}
		jitter := 0.0
		if noise > 0 {
			jitter = (f.rng.Float64()*2 - 1) * noise
		}
		out = append(out, domain.OddsObservation{
			Market:    m,
			Midpoint:  LaggedOdds(buf[0], strike, jitter),
			Timestamp: now,
		})
	}
	return out
}

// LaggedOdds maps the distance of price from strike to a probability:
// 0.5 + 10*distance + jitter, clamped to [0.05, 0.95] and rounded to 4
// decimals.
func LaggedOdds(price, strike, jitter float64) float64 {
	raw := 0.5 + ((price-strike)/strike)*10 + jitter
	raw = math.Max(0.05, math.Min(0.95, raw))
	return math.Round(raw*1e4) / 1e4
}
