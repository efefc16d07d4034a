package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYCOUNCIL_* environment variable overrides, and
// returns the final Config. An empty path skips the file and starts from
// defaults. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyLegacyEnv(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyLegacyEnv honours the flat variable names used by earlier deployments
// of the agent. POLYCOUNCIL_* variables are applied afterwards and win.
func applyLegacyEnv(cfg *Config) {
	setStr(&cfg.Trading.Mode, "TRADING_MODE")
	setStringSlice(&cfg.Trading.Symbols, "BINANCE_SYMBOLS")
	setStr(&cfg.Ollama.Host, "OLLAMA_HOST")
	setStr(&cfg.Ollama.APIKey, "OLLAMA_API_KEY")
	setStr(&cfg.Ollama.ModelSentiment, "LLM_MODEL_SENTIMENT")
	setStr(&cfg.Ollama.ModelConfidence, "LLM_MODEL_GRADER")
	setStr(&cfg.Ollama.ModelJudge, "LLM_MODEL_JUDGE")
	setStr(&cfg.Ollama.ModelFallback, "LLM_MODEL_FALLBACK")
	setStr(&cfg.Wallet.PrivateKey, "POLYMARKET_PRIVATE_KEY")
	setInt(&cfg.Polymarket.ChainID, "POLYMARKET_CHAIN_ID")
	setFloat64(&cfg.Strategy.MinEdgePct, "MIN_EDGE_PCT")
	setFloat64(&cfg.Strategy.MinSignalScore, "MIN_SIGNAL_SCORE")
	setFloat64(&cfg.Council.MinConfidence, "MIN_CONFIDENCE")
	setFloat64(&cfg.Risk.MaxCapital, "MAX_CAPITAL")
	setFloat64(&cfg.Risk.MaxPositionSize, "MAX_POSITION_SIZE")
	setInt(&cfg.Risk.MaxOpenPositions, "MAX_OPEN_POSITIONS")
	setSeconds(&cfg.Risk.Cooldown, "COOLDOWN_SECONDS")
	setInt(&cfg.Server.Port, "DASHBOARD_PORT")
	setBool(&cfg.Feeds.Simulation, "SIMULATION_MODE")
	setInt(&cfg.Simulation.MarketsPerSymbol, "SIM_MARKETS_PER_SYMBOL")
	setFloat64(&cfg.Simulation.StrikeSpreadPct, "SIM_STRIKE_SPREAD_PCT")
	setFloat64(&cfg.Simulation.PriceLagSeconds, "SIM_PRICE_LAG_SECONDS")
	setFloat64(&cfg.Simulation.NoisePct, "SIM_NOISE_PCT")
}

// applyEnvOverrides reads well-known POLYCOUNCIL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Trading ──
	setStr(&cfg.Trading.Mode, "POLYCOUNCIL_TRADING_MODE")
	setStringSlice(&cfg.Trading.Symbols, "POLYCOUNCIL_TRADING_SYMBOLS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYCOUNCIL_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYCOUNCIL_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYCOUNCIL_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYCOUNCIL_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYCOUNCIL_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYCOUNCIL_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYCOUNCIL_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.Exchange, "POLYCOUNCIL_POLYMARKET_EXCHANGE_ADDRESS")
	setStringSlice(&cfg.Polymarket.DiscoveryTags, "POLYCOUNCIL_POLYMARKET_DISCOVERY_TAGS")

	// ── Binance ──
	setStr(&cfg.Binance.WsHost, "POLYCOUNCIL_BINANCE_WS_HOST")

	// ── Ollama ──
	setStr(&cfg.Ollama.Host, "POLYCOUNCIL_OLLAMA_HOST")
	setStr(&cfg.Ollama.APIKey, "POLYCOUNCIL_OLLAMA_API_KEY")
	setStr(&cfg.Ollama.ModelSentiment, "POLYCOUNCIL_OLLAMA_MODEL_SENTIMENT")
	setStr(&cfg.Ollama.ModelConfidence, "POLYCOUNCIL_OLLAMA_MODEL_CONFIDENCE")
	setStr(&cfg.Ollama.ModelJudge, "POLYCOUNCIL_OLLAMA_MODEL_JUDGE")
	setStr(&cfg.Ollama.ModelFallback, "POLYCOUNCIL_OLLAMA_MODEL_FALLBACK")
	setBool(&cfg.Ollama.Think, "POLYCOUNCIL_OLLAMA_THINK")
	setInt(&cfg.Ollama.NumCtx, "POLYCOUNCIL_OLLAMA_NUM_CTX")
	setDuration(&cfg.Ollama.Timeout, "POLYCOUNCIL_OLLAMA_TIMEOUT")

	// ── Strategy ──
	setInt(&cfg.Strategy.MomentumWindow, "POLYCOUNCIL_STRATEGY_MOMENTUM_WINDOW")
	setFloat64(&cfg.Strategy.MinEdgePct, "POLYCOUNCIL_STRATEGY_MIN_EDGE_PCT")
	setFloat64(&cfg.Strategy.MinMomentumPct, "POLYCOUNCIL_STRATEGY_MIN_MOMENTUM_PCT")
	setFloat64(&cfg.Strategy.MinSignalScore, "POLYCOUNCIL_STRATEGY_MIN_SIGNAL_SCORE")
	setFloat64(&cfg.Strategy.Sensitivity, "POLYCOUNCIL_STRATEGY_SENSITIVITY")
	setFloat64(&cfg.Strategy.VolumeSpikeThreshold, "POLYCOUNCIL_STRATEGY_VOLUME_SPIKE_THRESHOLD")

	// ── Council ──
	setFloat64(&cfg.Council.MinConfidence, "POLYCOUNCIL_COUNCIL_MIN_CONFIDENCE")
	setFloat64(&cfg.Council.MinTradeSize, "POLYCOUNCIL_COUNCIL_MIN_TRADE_SIZE")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxCapital, "POLYCOUNCIL_RISK_MAX_CAPITAL")
	setFloat64(&cfg.Risk.MaxPositionSize, "POLYCOUNCIL_RISK_MAX_POSITION_SIZE")
	setInt(&cfg.Risk.MaxOpenPositions, "POLYCOUNCIL_RISK_MAX_OPEN_POSITIONS")
	setDuration(&cfg.Risk.Cooldown, "POLYCOUNCIL_RISK_COOLDOWN")

	// ── Feeds ──
	setBool(&cfg.Feeds.Simulation, "POLYCOUNCIL_FEEDS_SIMULATION")
	setDuration(&cfg.Feeds.OddsPollInterval, "POLYCOUNCIL_FEEDS_ODDS_POLL_INTERVAL")
	setFloat64(&cfg.Feeds.OddsRateLimit, "POLYCOUNCIL_FEEDS_ODDS_RATE_LIMIT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POLYCOUNCIL_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "POLYCOUNCIL_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POLYCOUNCIL_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POLYCOUNCIL_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "POLYCOUNCIL_DATABASE_USER")
	setStr(&cfg.Database.Password, "POLYCOUNCIL_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POLYCOUNCIL_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "POLYCOUNCIL_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "POLYCOUNCIL_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "POLYCOUNCIL_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYCOUNCIL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYCOUNCIL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYCOUNCIL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYCOUNCIL_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYCOUNCIL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYCOUNCIL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYCOUNCIL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYCOUNCIL_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYCOUNCIL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYCOUNCIL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYCOUNCIL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYCOUNCIL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYCOUNCIL_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYCOUNCIL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYCOUNCIL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYCOUNCIL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYCOUNCIL_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimit, "POLYCOUNCIL_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYCOUNCIL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYCOUNCIL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYCOUNCIL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYCOUNCIL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYCOUNCIL_MODE")
	setStr(&cfg.LogLevel, "POLYCOUNCIL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setSeconds reads an integer number of seconds.
func setSeconds(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dst.Duration = time.Duration(n) * time.Second
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
