package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alanyoungcy/polycouncil/internal/config"
	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/executor"
)

type fakePnL struct {
	sum domain.PnLSummary
	err error
}

func (f fakePnL) GetPnLSummary(context.Context) (domain.PnLSummary, error) { return f.sum, f.err }

type fakePortfolio struct {
	open      int
	available float64
}

func (f fakePortfolio) OpenCount(context.Context) (int, error)             { return f.open, nil }
func (f fakePortfolio) AvailableCapital(context.Context) (float64, error) { return f.available, nil }

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStatusOnceExportsGauges(t *testing.T) {
	a := newTestApp(t, nil)
	a.statusOnce(context.Background(),
		fakePnL{sum: domain.PnLSummary{TotalTrades: 4, TotalPnL: 12.5, WinRate: 0.75}},
		fakePortfolio{open: 2, available: 940},
	)

	expected := `
# HELP polycouncil_open_positions Open positions at the last status report
# TYPE polycouncil_open_positions gauge
polycouncil_open_positions 2
`
	if err := testutil.GatherAndCompare(a.registry, strings.NewReader(expected), "polycouncil_open_positions"); err != nil {
		t.Fatal(err)
	}
}

func TestStatusOnceSkipsOnStoreError(t *testing.T) {
	a := newTestApp(t, nil)
	a.statusOnce(context.Background(), fakePnL{err: errors.New("db down")}, fakePortfolio{open: 9})

	n, err := testutil.GatherAndCount(a.registry, "polycouncil_open_positions")
	if err != nil {
		t.Fatal(err)
	}
	// The gauge exists but was never set past zero.
	if n != 1 {
		t.Fatalf("series = %d", n)
	}
	if v := gaugeValue(t, a, "polycouncil_open_positions"); v != 0 {
		t.Fatalf("open_positions = %v, want 0", v)
	}
}

func gaugeValue(t *testing.T, a *App, name string) float64 {
	t.Helper()
	mfs, err := a.registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestNormaliseSymbols(t *testing.T) {
	got := normaliseSymbols([]string{" BTCUSDT", "ethusdt", "", "  "})
	if strings.Join(got, ",") != "btcusdt,ethusdt" {
		t.Fatalf("symbols = %v", got)
	}
}

func TestNeedsDatabase(t *testing.T) {
	for mode, want := range map[string]bool{"agent": true, "server": true, "monitor": false, "MONITOR": false} {
		if got := needsDatabase(mode); got != want {
			t.Errorf("needsDatabase(%q) = %v", mode, got)
		}
	}
}

func TestBuildVenue(t *testing.T) {
	paper := newTestApp(t, nil)
	v, err := paper.buildVenue()
	if err != nil {
		t.Fatal(err)
	}
	if v.Name() != "paper" {
		t.Fatalf("venue = %s", v.Name())
	}

	live := newTestApp(t, func(c *config.Config) {
		c.Trading.Mode = "live"
		c.Wallet.PrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	})
	v, err = live.buildVenue()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*executor.LiveVenue); !ok {
		t.Fatalf("venue = %T, want *executor.LiveVenue", v)
	}

	missing := newTestApp(t, func(c *config.Config) { c.Trading.Mode = "live" })
	if _, err := missing.buildVenue(); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestRunMonitorSimulationStopsOnCancel(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) {
		c.Mode = "monitor"
		c.Redis.Addr = ""
		c.S3.Enabled = false
		c.Feeds.Simulation = true
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("cancelled monitor run: %v", err)
	}
}
