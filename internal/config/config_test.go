package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Trading.IsLive() {
		t.Fatal("default trading mode should be paper")
	}
	if cfg.Risk.Cooldown.Duration != 300*time.Second {
		t.Fatalf("cooldown = %v, want 300s", cfg.Risk.Cooldown.Duration)
	}
}

func TestValidateLiveRequiresKey(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Mode = "live"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "wallet:") {
		t.Fatalf("expected wallet error, got %v", err)
	}

	cfg.Wallet.PrivateKey = "deadbeef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("live with key should validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Strategy.WeightEdge = 0.9
	cfg.Strategy.MinSignalScore = 1.5
	cfg.Risk.MaxOpenPositions = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		`unknown mode "bogus"`,
		"weights must sum to 1",
		"strategy.min_signal_score: failed lte=1",
		"risk.max_open_positions: failed gte=1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "monitor"

[risk]
max_capital = 500.0
cooldown = "90s"

[trading]
symbols = ["btcusdt"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MAX_POSITION_SIZE", "25")
	t.Setenv("POLYCOUNCIL_RISK_MAX_POSITION_SIZE", "30")
	t.Setenv("COOLDOWN_SECONDS", "120")
	t.Setenv("OLLAMA_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Risk.MaxCapital != 500 {
		t.Errorf("max_capital = %v", cfg.Risk.MaxCapital)
	}
	if cfg.Risk.MaxPositionSize != 30 {
		t.Errorf("prefixed override should win over legacy name, got %v", cfg.Risk.MaxPositionSize)
	}
	if cfg.Risk.Cooldown.Duration != 120*time.Second {
		t.Errorf("cooldown = %v", cfg.Risk.Cooldown.Duration)
	}
	if len(cfg.Trading.Symbols) != 1 || cfg.Trading.Symbols[0] != "btcusdt" {
		t.Errorf("symbols = %v", cfg.Trading.Symbols)
	}
	// Untouched sections keep their defaults.
	if cfg.Strategy.MomentumWindow != 20 {
		t.Errorf("momentum_window = %d", cfg.Strategy.MomentumWindow)
	}

	red := RedactedConfig(cfg)
	if red.Ollama.APIKey != "***" {
		t.Errorf("api key not redacted: %q", red.Ollama.APIKey)
	}
	if cfg.Ollama.APIKey != "secret" {
		t.Error("redaction mutated the original")
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg := Defaults()
	if _, err := toml.DecodeFile(filepath.Join("..", "..", "config.example.toml"), &cfg); err != nil {
		t.Fatalf("decode example: %v", err)
	}
	if want := Defaults(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("config.example.toml drifted from Defaults():\n got %+v\nwant %+v", cfg, want)
	}
}
