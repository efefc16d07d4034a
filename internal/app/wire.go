package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/polycouncil/internal/blob/s3"
	"github.com/alanyoungcy/polycouncil/internal/cache/redis"
	"github.com/alanyoungcy/polycouncil/internal/config"
	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/notify"
	"github.com/alanyoungcy/polycouncil/internal/store/postgres"
)

// Dependencies bundles the storage, cache and notification collaborators.
// Optional pieces are nil when their backend is not configured.
type Dependencies struct {
	Trades *postgres.TradeStore // nil in monitor mode

	OddsCache   domain.OddsCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager

	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

func needsDatabase(mode string) bool {
	return !strings.EqualFold(mode, "monitor")
}

func pgConfig(cfg config.DatabaseConfig) postgres.ClientConfig {
	return postgres.ClientConfig{
		DSN:      cfg.DSN,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Password: cfg.Password,
		SSLMode:  cfg.SSLMode,
		MaxConns: cfg.PoolMaxConns,
		MinConns: cfg.PoolMinConns,
	}
}

// Wire constructs the concrete dependencies and a cleanup function that
// releases them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	if needsDatabase(cfg.Mode) {
		pg, err := postgres.New(ctx, pgConfig(cfg.Database))
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Database.RunMigrations {
			applied, err := pg.RunMigrations(ctx)
			if err != nil {
				return fail("postgres migrations", err)
			}
			if len(applied) > 0 {
				logger.Info("migrations applied", slog.Any("names", applied))
			}
		}
		deps.Trades = postgres.NewTradeStore(pg.Pool())
	}

	if cfg.Redis.Enabled() {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.OddsCache = redis.NewOddsCache(rc, 0)
		deps.SignalBus = redis.NewSignalBus(rc, cfg.Redis.StreamMaxLen)
		deps.LockManager = redis.NewLockManager(rc)
	} else {
		logger.Info("redis disabled; running without odds mirror, signal bus or distributed lock")
	}

	if cfg.S3.Enabled && deps.Trades != nil {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		if err := sc.Health(ctx); err != nil {
			logger.Warn("archive bucket unreachable; archiving will retry on schedule", slog.String("error", err.Error()))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), s3blob.NewReader(sc), deps.Trades, logger)
	}

	deps.Notifier = newNotifier(cfg.Notify, logger)
	return deps, cleanup, nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}

// Migrate connects to Postgres and applies pending migrations.
func Migrate(ctx context.Context, cfg *config.Config) ([]string, error) {
	pg, err := postgres.New(ctx, pgConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("migrate: connect: %w", err)
	}
	defer pg.Close()
	return pg.RunMigrations(ctx)
}
