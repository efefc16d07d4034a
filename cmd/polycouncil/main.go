// Command polycouncil runs the divergence trading agent. It loads the
// configuration, wires dependencies and runs the configured mode until
// SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polycouncil/internal/app"
	"github.com/alanyoungcy/polycouncil/internal/config"
	"github.com/alanyoungcy/polycouncil/internal/crypto"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "polycouncil",
		Short:         "Crypto prediction-market divergence agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the agent in the configured mode",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAgent(cmd.Context(), configPath)
			},
		},
		migrateCmd(&configPath),
		encryptKeyCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "polycouncil %s\n", version)
			},
		},
	)
	return root
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func runAgent(parent context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	redacted := config.RedactedConfig(cfg)
	logger.Info("polycouncil starting",
		slog.String("version", version),
		slog.String("config", configPath),
		slog.Any("settings", redacted),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger)
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		return err
	}
	logger.Info("polycouncil stopped")
	return nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			applied, err := app.Migrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			logger.Info("migrations complete", slog.Int("applied", len(applied)), slog.Any("names", applied))
			return nil
		},
	}
}

func encryptKeyCmd() *cobra.Command {
	var key, password, out string
	cmd := &cobra.Command{
		Use:   "encrypt-key",
		Short: "Encrypt a hex private key into a password-protected key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = os.Getenv("POLYCOUNCIL_WALLET_PRIVATE_KEY")
			}
			if password == "" {
				password = os.Getenv("POLYCOUNCIL_WALLET_KEY_PASSWORD")
			}
			if key == "" || password == "" {
				return fmt.Errorf("encrypt-key: --key and --password (or POLYCOUNCIL_WALLET_PRIVATE_KEY and POLYCOUNCIL_WALLET_KEY_PASSWORD) are required")
			}
			if err := crypto.WriteEncryptedKey(out, key, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encrypted key written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "hex private key (0x prefix optional)")
	cmd.Flags().StringVar(&password, "password", "", "encryption password")
	cmd.Flags().StringVar(&out, "out", "wallet.key", "output path")
	return cmd
}
