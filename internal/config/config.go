// Package config defines the top-level configuration for the divergence agent
// and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYCOUNCIL_* environment variables.
type Config struct {
	Trading    TradingConfig    `toml:"trading"`
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Binance    BinanceConfig    `toml:"binance"`
	Ollama     OllamaConfig     `toml:"ollama"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Council    CouncilConfig    `toml:"council"`
	Risk       RiskConfig       `toml:"risk"`
	Feeds      FeedsConfig      `toml:"feeds"`
	Simulation SimulationConfig `toml:"simulation"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// TradingConfig selects paper or live execution and the watched symbols.
type TradingConfig struct {
	Mode    string   `toml:"mode"`
	Symbols []string `toml:"symbols" validate:"min=1"`
}

// IsLive reports whether orders go to the real venue.
func (t TradingConfig) IsLive() bool { return strings.EqualFold(t.Mode, "live") }

// WalletConfig holds Ethereum wallet credentials used by live trading.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints, chain parameters and the
// discovery query.
type PolymarketConfig struct {
	ClobHost       string              `toml:"clob_host"`
	GammaHost      string              `toml:"gamma_host"`
	ChainID        int                 `toml:"chain_id" validate:"gt=0"`
	SignatureType  int                 `toml:"signature_type" validate:"gte=0,lte=2"`
	Exchange       string              `toml:"exchange_address"`
	DiscoveryTags  []string            `toml:"discovery_tags"`
	DiscoveryLimit int                 `toml:"discovery_limit" validate:"gt=0,lte=500"`
	SymbolKeywords map[string][]string `toml:"symbol_keywords"`
}

// BinanceConfig holds the exchange ticker stream endpoint.
type BinanceConfig struct {
	WsHost string `toml:"ws_host"`
}

// OllamaConfig selects the inference backend and per-stage models.
type OllamaConfig struct {
	Host            string   `toml:"host"`
	APIKey          string   `toml:"api_key"`
	ModelSentiment  string   `toml:"model_sentiment"`
	ModelConfidence string   `toml:"model_confidence"`
	ModelJudge      string   `toml:"model_judge"`
	ModelFallback   string   `toml:"model_fallback"`
	Think           bool     `toml:"think"`
	NumCtx          int      `toml:"num_ctx" validate:"gte=0"`
	Timeout         duration `toml:"timeout"`
}

// StrategyConfig holds the divergence scorer thresholds and weights.
type StrategyConfig struct {
	MomentumWindow       int     `toml:"momentum_window" validate:"gte=2"`
	MinEdgePct           float64 `toml:"min_edge_pct" validate:"gte=0"`
	MinMomentumPct       float64 `toml:"min_momentum_pct" validate:"gte=0"`
	MinSignalScore       float64 `toml:"min_signal_score" validate:"gte=0,lte=1"`
	Sensitivity          float64 `toml:"sensitivity" validate:"gt=0"`
	VolumeSpikeThreshold float64 `toml:"volume_spike_threshold" validate:"gt=0"`
	WeightEdge           float64 `toml:"weight_edge" validate:"gte=0,lte=1"`
	WeightMomentum       float64 `toml:"weight_momentum" validate:"gte=0,lte=1"`
	WeightVolume         float64 `toml:"weight_volume" validate:"gte=0,lte=1"`
}

// CouncilConfig holds the orchestrator thresholds.
type CouncilConfig struct {
	MinConfidence float64 `toml:"min_confidence" validate:"gte=0,lte=1"`
	MinTradeSize  float64 `toml:"min_trade_size" validate:"gt=0"`
}

// RiskConfig holds the exposure ceilings and the per-symbol cooldown.
type RiskConfig struct {
	MaxCapital       float64  `toml:"max_capital" validate:"gt=0"`
	MaxPositionSize  float64  `toml:"max_position_size" validate:"gt=0"`
	MaxOpenPositions int      `toml:"max_open_positions" validate:"gte=1"`
	Cooldown         duration `toml:"cooldown"`
	LockTTL          duration `toml:"lock_ttl"`
}

// FeedsConfig holds queue capacities and polling cadence.
type FeedsConfig struct {
	Simulation       bool     `toml:"simulation"`
	OddsPollInterval duration `toml:"odds_poll_interval"`
	OddsRateLimit    float64  `toml:"odds_rate_limit" validate:"gt=0"`
	PollTimeout      duration `toml:"poll_timeout"`
	PriceQueue       int      `toml:"price_queue" validate:"gte=1"`
	OddsQueue        int      `toml:"odds_queue" validate:"gte=1"`
	PairedQueue      int      `toml:"paired_queue" validate:"gte=1"`
	SignalQueue      int      `toml:"signal_queue" validate:"gte=1"`
	StatusInterval   duration `toml:"status_interval"`
}

// SimulationConfig tunes the synthetic feeds used when feeds.simulation is set.
type SimulationConfig struct {
	MarketsPerSymbol int                `toml:"markets_per_symbol" validate:"gte=1"`
	StrikeSpreadPct  float64            `toml:"strike_spread_pct" validate:"gte=0"`
	PriceLagSeconds  float64            `toml:"price_lag_seconds" validate:"gte=0"`
	NoisePct         float64            `toml:"noise_pct" validate:"gte=0"`
	PriceInterval    duration           `toml:"price_interval"`
	OddsInterval     duration           `toml:"odds_interval"`
	BasePrices       map[string]float64 `toml:"base_prices"`
	Seed             int64              `toml:"seed"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" validate:"gte=1"`
	PoolMinConns  int    `toml:"pool_min_conns" validate:"gte=0"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// odds mirror, the signal bus and the distributed execution lock.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	ArchiveEvery   duration `toml:"archive_every"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   float64  `toml:"rate_limit" validate:"gte=0"` // requests/s per client IP; 0 disables
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			Mode:    "paper",
			Symbols: []string{"btcusdt", "ethusdt", "solusdt"},
		},
		Polymarket: PolymarketConfig{
			ClobHost:       "https://clob.polymarket.com",
			GammaHost:      "https://gamma-api.polymarket.com",
			ChainID:        137,
			SignatureType:  0,
			Exchange:       "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
			DiscoveryTags:  []string{"crypto", "bitcoin", "ethereum", "solana"},
			DiscoveryLimit: 100,
			SymbolKeywords: map[string][]string{
				"btcusdt": {"bitcoin", "btc"},
				"ethusdt": {"ethereum", "eth"},
				"solusdt": {"solana", "sol"},
			},
		},
		Binance: BinanceConfig{
			WsHost: "wss://stream.binance.com:9443",
		},
		Ollama: OllamaConfig{
			Host:            "https://ollama.com",
			ModelSentiment:  "nemotron-3-nano:30b",
			ModelConfidence: "qwen3-next:80b",
			ModelJudge:      "gpt-oss:120b",
			ModelFallback:   "gemini-3-flash-preview",
			Think:           true,
			Timeout:         duration{300 * time.Second},
		},
		Strategy: StrategyConfig{
			MomentumWindow:       20,
			MinEdgePct:           2.0,
			MinMomentumPct:       0.3,
			MinSignalScore:       0.6,
			Sensitivity:          0.03,
			VolumeSpikeThreshold: 1.5,
			WeightEdge:           0.5,
			WeightMomentum:       0.3,
			WeightVolume:         0.2,
		},
		Council: CouncilConfig{
			MinConfidence: 0.6,
			MinTradeSize:  5.0,
		},
		Risk: RiskConfig{
			MaxCapital:       1000,
			MaxPositionSize:  50,
			MaxOpenPositions: 3,
			Cooldown:         duration{300 * time.Second},
			LockTTL:          duration{30 * time.Second},
		},
		Feeds: FeedsConfig{
			OddsPollInterval: duration{5 * time.Second},
			OddsRateLimit:    10,
			PollTimeout:      duration{5 * time.Second},
			PriceQueue:       1000,
			OddsQueue:        1000,
			PairedQueue:      500,
			SignalQueue:      100,
			StatusInterval:   duration{60 * time.Second},
		},
		Simulation: SimulationConfig{
			MarketsPerSymbol: 3,
			StrikeSpreadPct:  1.0,
			PriceLagSeconds:  5.0,
			NoisePct:         2.0,
			PriceInterval:    duration{time.Second},
			OddsInterval:     duration{time.Second},
			BasePrices: map[string]float64{
				"btcusdt": 87000,
				"ethusdt": 2400,
				"solusdt": 140,
			},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polycouncil",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polycouncil-archive",
			ForcePathStyle: true,
			ArchiveEvery:   duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   20,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "trade_closed", "risk_blocked", "agent_started"},
		},
		Mode:     "agent",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"agent":   true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validTradingModes = map[string]bool{
	"paper": true,
	"live":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: agent, monitor, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validTradingModes[strings.ToLower(c.Trading.Mode)] {
		errs = append(errs, fmt.Sprintf("trading: unknown mode %q (valid: paper, live)", c.Trading.Mode))
	}

	errs = append(errs, c.structErrors()...)

	// Live trading cannot start without a signing key.
	if c.Trading.IsLive() {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for live trading")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Feeds.Simulation {
			errs = append(errs, "feeds: simulation cannot be combined with live trading")
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if !c.Feeds.Simulation && c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Ollama.Host == "" {
		errs = append(errs, "ollama: host must not be empty")
	}

	w := c.Strategy.WeightEdge + c.Strategy.WeightMomentum + c.Strategy.WeightVolume
	if math.Abs(w-1) > 1e-9 {
		errs = append(errs, fmt.Sprintf("strategy: weights must sum to 1, got %.4f", w))
	}
	if c.Council.MinTradeSize > c.Risk.MaxPositionSize {
		errs = append(errs, "council: min_trade_size must not exceed risk.max_position_size")
	}
	if c.Risk.MaxPositionSize > c.Risk.MaxCapital {
		errs = append(errs, "risk: max_position_size must not exceed max_capital")
	}

	for name, d := range map[string]duration{
		"risk.cooldown":            c.Risk.Cooldown,
		"feeds.odds_poll_interval": c.Feeds.OddsPollInterval,
		"feeds.poll_timeout":       c.Feeds.PollTimeout,
		"feeds.status_interval":    c.Feeds.StatusInterval,
		"ollama.timeout":           c.Ollama.Timeout,
	} {
		if d.Duration <= 0 {
			errs = append(errs, name+": must be a positive duration")
		}
	}
	if c.Feeds.Simulation && (c.Simulation.PriceInterval.Duration <= 0 || c.Simulation.OddsInterval.Duration <= 0) {
		errs = append(errs, "simulation: price_interval and odds_interval must be positive")
	}

	if c.needsDatabase() && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Enabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveEvery.Duration <= 0 {
			errs = append(errs, "s3: archive_every must be a positive duration")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// needsDatabase reports whether the configured mode persists anything.
func (c *Config) needsDatabase() bool {
	return strings.ToLower(c.Mode) != "monitor"
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// structErrors runs the validate struct tags and renders each failure as
// "section.field: failed <tag>=<param>".
func (c *Config) structErrors() []string {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, fmt.Sprintf("%s: failed %s (got %v)", field, rule, fe.Value()))
	}
	return out
}
