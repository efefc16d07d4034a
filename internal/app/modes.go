package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polycouncil/internal/council"
	"github.com/alanyoungcy/polycouncil/internal/crypto"
	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/executor"
	"github.com/alanyoungcy/polycouncil/internal/feed"
	"github.com/alanyoungcy/polycouncil/internal/notify"
	"github.com/alanyoungcy/polycouncil/internal/platform/binance"
	"github.com/alanyoungcy/polycouncil/internal/platform/ollama"
	"github.com/alanyoungcy/polycouncil/internal/platform/polymarket"
	"github.com/alanyoungcy/polycouncil/internal/server"
	"github.com/alanyoungcy/polycouncil/internal/server/handler"
	"github.com/alanyoungcy/polycouncil/internal/server/ws"
	"github.com/alanyoungcy/polycouncil/internal/service"
	"github.com/alanyoungcy/polycouncil/internal/strategy"
)

// pipeline is the output of the running detection stages.
type pipeline struct {
	markets []domain.MarketRef
	signals chan domain.DivergenceSignal
}

// AgentMode runs the full pipeline: feeds, detection, council, execution,
// status reporting and, when configured, the dashboard and archiver.
func (a *App) AgentMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	p, err := a.startPipeline(ctx, g, deps)
	if err != nil {
		return err
	}

	risk := service.NewRiskGate(deps.Trades, service.RiskConfig{
		MaxCapital:       a.cfg.Risk.MaxCapital,
		MaxPositionSize:  a.cfg.Risk.MaxPositionSize,
		MaxOpenPositions: a.cfg.Risk.MaxOpenPositions,
	}, a.logger)

	venue, err := a.buildVenue()
	if err != nil {
		return err
	}
	opts := []executor.RouterOption{
		executor.WithNotifier(deps.Notifier),
		executor.WithRouterMetrics(a.metrics),
	}
	if deps.LockManager != nil {
		opts = append(opts, executor.WithLock(deps.LockManager, a.cfg.Risk.LockTTL.Duration))
	}
	router := executor.NewRouter(risk, venue, deps.Trades, a.logger, opts...)

	backend := ollama.New(a.cfg.Ollama.Host,
		ollama.WithAPIKey(a.cfg.Ollama.APIKey),
		ollama.WithThink(a.cfg.Ollama.Think),
		ollama.WithNumCtx(a.cfg.Ollama.NumCtx),
		ollama.WithTimeout(a.cfg.Ollama.Timeout.Duration),
	)
	if !backend.Available(ctx) {
		a.logger.Warn("inference backend not reachable at startup; stages will fail safe until it is",
			slog.String("host", a.cfg.Ollama.Host))
	}
	cncl := council.New(backend, council.Config{
		ModelSentiment:  a.cfg.Ollama.ModelSentiment,
		ModelConfidence: a.cfg.Ollama.ModelConfidence,
		ModelJudge:      a.cfg.Ollama.ModelJudge,
		ModelFallback:   a.cfg.Ollama.ModelFallback,
		MinConfidence:   a.cfg.Council.MinConfidence,
		MinTradeSize:    a.cfg.Council.MinTradeSize,
		MaxPositionSize: a.cfg.Risk.MaxPositionSize,
	}, a.metrics, a.logger)

	exec := executor.New(cncl, risk, router, executor.NewCooldown(a.cfg.Risk.Cooldown.Duration),
		deps.Trades, deps.SignalBus, executor.Config{PollTimeout: a.cfg.Feeds.PollTimeout.Duration},
		a.metrics, a.logger)
	g.Go(func() error { return exec.Run(ctx, p.signals) })

	g.Go(func() error { return a.reportStatus(ctx, deps.Trades, risk) })

	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx, a.cfg.S3.ArchiveEvery.Duration) })
	}
	if a.cfg.Server.Enabled {
		srv := a.newServer(deps, risk, p.markets)
		g.Go(func() error { return srv.Run(ctx) })
	}

	title, msg := notify.AgentStarted(a.cfg.Mode, a.cfg.Trading.Mode, a.cfg.Trading.Symbols)
	if err := deps.Notifier.Notify(ctx, notify.EventAgentStarted, title, msg); err != nil {
		a.logger.Warn("startup notification failed", slog.String("error", err.Error()))
	}
	a.logger.Info("agent running",
		slog.Int("markets", len(p.markets)),
		slog.Bool("live", a.cfg.Trading.IsLive()),
	)
	return g.Wait()
}

// MonitorMode runs feeds and detection only and logs every signal. Nothing
// is persisted and no order is placed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	p, err := a.startPipeline(ctx, g, deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case sig, ok := <-p.signals:
				if !ok {
					return nil
				}
				a.logger.Info("signal",
					slog.String("symbol", sig.Symbol),
					slog.String("direction", sig.Direction.String()),
					slog.Float64("score", sig.Score),
					slog.Float64("edge_pct", sig.EdgePct),
					slog.Float64("momentum_pct", sig.MomentumPct),
					slog.String("question", sig.Market.Question),
				)
			}
		}
	})
	return g.Wait()
}

// ServerMode serves the dashboard over the stored trades without running
// the pipeline.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	risk := service.NewRiskGate(deps.Trades, service.RiskConfig{
		MaxCapital:       a.cfg.Risk.MaxCapital,
		MaxPositionSize:  a.cfg.Risk.MaxPositionSize,
		MaxOpenPositions: a.cfg.Risk.MaxOpenPositions,
	}, a.logger)
	return a.newServer(deps, risk, nil).Run(ctx)
}

// startPipeline resolves markets and starts the feed, aggregator and
// detector stages on g.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies) (*pipeline, error) {
	fc := a.cfg.Feeds
	symbols := normaliseSymbols(a.cfg.Trading.Symbols)
	tracker := strategy.NewMomentumTracker(a.cfg.Strategy.MomentumWindow)

	prices := make(chan domain.PriceObservation, fc.PriceQueue)
	odds := make(chan domain.OddsObservation, fc.OddsQueue)
	paired := make(chan domain.PairedObservation, fc.PairedQueue)
	signals := make(chan domain.DivergenceSignal, fc.SignalQueue)

	var markets []domain.MarketRef
	if fc.Simulation {
		sim := a.simConfig()
		markets = feed.SimulatedMarkets(symbols, sim, tracker.Latest)
		priceFeed := feed.NewSimPriceFeed(symbols, sim, tracker, a.metrics, a.logger)
		oddsFeed := feed.NewSimOddsFeed(markets, sim, tracker.Latest, a.logger)
		g.Go(func() error { return priceFeed.Run(ctx, prices) })
		g.Go(func() error { return oddsFeed.Run(ctx, odds) })
	} else {
		gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost, fc.OddsRateLimit)
		disc := feed.NewDiscovery(gamma, a.cfg.Polymarket.DiscoveryTags, a.cfg.Polymarket.DiscoveryLimit,
			symbols, a.cfg.Polymarket.SymbolKeywords, a.logger)
		found, err := disc.Discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: market discovery: %w", err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("app: market discovery: no markets matched %v", symbols)
		}
		markets = found

		ticker := binance.NewClient(a.cfg.Binance.WsHost, symbols, a.logger)
		priceFeed := feed.NewPriceFeed(ticker, tracker, a.metrics, a.logger)
		clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost)
		poller := feed.NewOddsPoller(clob, markets, fc.OddsPollInterval.Duration, fc.OddsRateLimit, a.metrics, a.logger)
		g.Go(func() error { return priceFeed.Run(ctx, prices) })
		g.Go(func() error { return poller.Run(ctx, odds) })
	}
	a.logger.Info("markets resolved", slog.Int("count", len(markets)), slog.Bool("simulated", fc.Simulation))

	aggOpts := []feed.AggregatorOption{
		feed.WithPollTimeout(fc.PollTimeout.Duration),
		feed.WithMetrics(a.metrics),
	}
	if deps.OddsCache != nil {
		aggOpts = append(aggOpts, feed.WithOddsMirror(deps.OddsCache))
	}
	agg := feed.NewAggregator(markets, a.logger, aggOpts...)
	g.Go(func() error { return agg.Run(ctx, prices, odds, paired) })

	sc := a.cfg.Strategy
	scorer := strategy.NewScorer(strategy.ScorerConfig{
		MinEdgePct:           sc.MinEdgePct,
		MinMomentumPct:       sc.MinMomentumPct,
		MinSignalScore:       sc.MinSignalScore,
		Sensitivity:          sc.Sensitivity,
		VolumeSpikeThreshold: sc.VolumeSpikeThreshold,
		WeightEdge:           sc.WeightEdge,
		WeightMomentum:       sc.WeightMomentum,
		WeightVolume:         sc.WeightVolume,
	})
	det := strategy.NewDetector(scorer, tracker, fc.PollTimeout.Duration, a.metrics, a.logger)
	g.Go(func() error { return det.Run(ctx, paired, signals) })

	return &pipeline{markets: markets, signals: signals}, nil
}

func (a *App) simConfig() feed.SimConfig {
	s := a.cfg.Simulation
	return feed.SimConfig{
		MarketsPerSymbol: s.MarketsPerSymbol,
		StrikeSpreadPct:  s.StrikeSpreadPct,
		PriceLagSeconds:  s.PriceLagSeconds,
		NoisePct:         s.NoisePct,
		PriceInterval:    s.PriceInterval.Duration,
		OddsInterval:     s.OddsInterval.Duration,
		BasePrices:       s.BasePrices,
		Seed:             s.Seed,
	}
}

// buildVenue returns the paper venue, or the signed CLOB venue when trading
// live.
func (a *App) buildVenue() (executor.Venue, error) {
	if !a.cfg.Trading.IsLive() {
		return executor.PaperVenue{}, nil
	}
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("app: live venue: %w", err)
	}
	pm := a.cfg.Polymarket
	signer, err := crypto.NewSigner(key, int64(pm.ChainID), pm.Exchange)
	if err != nil {
		return nil, fmt.Errorf("app: live venue: %w", err)
	}
	a.logger.Info("live trading enabled", slog.String("address", signer.Address().Hex()))
	clob := polymarket.NewClobClient(pm.ClobHost,
		polymarket.WithSigner(signer, pm.SignatureType),
		polymarket.WithRateLimit(a.cfg.Feeds.OddsRateLimit),
	)
	return executor.NewLiveVenue(clob), nil
}

// newServer builds the dashboard. markets seeds GET /api/odds and may be
// nil when no pipeline runs.
func (a *App) newServer(deps *Dependencies, risk *service.RiskGate, markets []domain.MarketRef) *server.Server {
	settlement := service.NewSettlementService(deps.Trades, deps.SignalBus, deps.Notifier, a.logger)
	hub := ws.NewHub(deps.SignalBus, a.logger)
	handlers := server.Handlers{
		Status: handler.NewStatusHandler(a.cfg.Mode, a.cfg.Trading.Mode, risk, deps.Trades, a.logger),
		Trades: handler.NewTradeHandler(deps.Trades, settlement, a.logger),
	}
	if deps.OddsCache != nil {
		handlers.Odds = handler.NewOddsHandler(deps.OddsCache, markets, a.logger)
	}
	return server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, a.registry, a.logger)
}

// pnlSource is the slice of the trade store the status reporter reads.
type pnlSource interface {
	GetPnLSummary(ctx context.Context) (domain.PnLSummary, error)
}

// portfolio reports the exposure figures.
type portfolio interface {
	OpenCount(ctx context.Context) (int, error)
	AvailableCapital(ctx context.Context) (float64, error)
}

// reportStatus logs and exports the portfolio summary every status interval.
func (a *App) reportStatus(ctx context.Context, pnl pnlSource, pf portfolio) error {
	every := a.cfg.Feeds.StatusInterval.Duration
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.statusOnce(ctx, pnl, pf)
		}
	}
}

func (a *App) statusOnce(ctx context.Context, pnl pnlSource, pf portfolio) {
	sum, err := pnl.GetPnLSummary(ctx)
	if err != nil {
		a.metrics.Error("status")
		a.logger.Warn("status: pnl summary failed", slog.String("error", err.Error()))
		return
	}
	open, err := pf.OpenCount(ctx)
	if err != nil {
		a.logger.Warn("status: open count failed", slog.String("error", err.Error()))
		return
	}
	available, err := pf.AvailableCapital(ctx)
	if err != nil {
		a.logger.Warn("status: available capital failed", slog.String("error", err.Error()))
		return
	}

	a.metrics.Status(open, available, sum.TotalPnL)
	a.logger.Info("status",
		slog.Int64("total_trades", sum.TotalTrades),
		slog.Float64("win_rate", sum.WinRate),
		slog.Float64("total_pnl", sum.TotalPnL),
		slog.Int("open_positions", open),
		slog.Float64("available_capital", available),
	)
}

func normaliseSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
