package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/metrics"
	"github.com/alanyoungcy/polycouncil/internal/server/handler"
)

type fakeTrades struct {
	recent    []domain.TradeRecord
	open      []domain.TradeRecord
	sum       domain.PnLSummary
	lastLimit int
}

func (f *fakeTrades) GetRecentTrades(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	f.lastLimit = limit
	return f.recent, nil
}

func (f *fakeTrades) GetOpenTrades(context.Context) ([]domain.TradeRecord, error) {
	return f.open, nil
}

func (f *fakeTrades) GetPnLSummary(context.Context) (domain.PnLSummary, error) {
	return f.sum, nil
}

func (f *fakeTrades) OpenCount(context.Context) (int, error) { return len(f.open), nil }

func (f *fakeTrades) AvailableCapital(context.Context) (float64, error) { return 980, nil }

type fakeSettler struct{}

func (fakeSettler) Close(_ context.Context, id string, exit float64) (domain.TradeRecord, error) {
	switch {
	case exit < 0 || exit > 1:
		return domain.TradeRecord{}, fmt.Errorf("settle: %w", domain.ErrInvalidOrder)
	case id != "paper-1":
		return domain.TradeRecord{}, fmt.Errorf("settle: %w", domain.ErrNotFound)
	}
	pnl := 4.4
	return domain.TradeRecord{OrderID: id, ExitPrice: &exit, PnL: &pnl}, nil
}

type fakeOdds struct {
	mids map[string]float64

	mu    sync.Mutex
	asked []string
}

func (f *fakeOdds) lastAsked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asked
}

func (f *fakeOdds) SetOdds(context.Context, domain.OddsObservation) error { return nil }

func (f *fakeOdds) GetOdds(_ context.Context, token string) (float64, time.Time, error) {
	mid, ok := f.mids[token]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("odds %s: %w", token, domain.ErrNotFound)
	}
	return mid, time.Unix(1_700_000_000, 0), nil
}

func (f *fakeOdds) GetMany(_ context.Context, tokens []string) (map[string]float64, error) {
	f.mu.Lock()
	f.asked = tokens
	f.mu.Unlock()
	out := map[string]float64{}
	for _, t := range tokens {
		if mid, ok := f.mids[t]; ok {
			out[t] = mid
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *fakeTrades) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trades := &fakeTrades{
		recent: []domain.TradeRecord{{OrderID: "paper-1", Symbol: "BTCUSDT", SizeUSD: 20}},
		open:   []domain.TradeRecord{{OrderID: "paper-1", Symbol: "BTCUSDT", SizeUSD: 20}},
		sum:    domain.PnLSummary{TotalTrades: 3, Wins: 2, Losses: 1, TotalPnL: 7.5},
	}
	reg := prometheus.NewRegistry()
	metrics.New(reg).Signal("BTCUSDT", "UP")

	h := Routes(cfg, Handlers{
		Status: handler.NewStatusHandler("agent", "paper", trades, trades, logger),
		Trades: handler.NewTradeHandler(trades, fakeSettler{}, logger),
		Odds:   handler.NewOddsHandler(testOdds, testMarkets, logger),
	}, nil, reg, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, trades
}

var (
	testOdds    = &fakeOdds{mids: map[string]float64{"tok-btc": 0.61, "tok-x": 0.2}}
	testMarkets = []domain.MarketRef{
		{ConditionID: "c-btc", TokenID: "tok-btc", Symbol: "BTCUSDT"},
		{ConditionID: "c-eth", TokenID: "tok-eth", Symbol: "ETHUSDT"},
	}
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	var body map[string]any
	if code := getJSON(t, srv.URL+"/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" || body["timestamp"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	var body struct {
		Status           string            `json:"status"`
		Mode             string            `json:"mode"`
		TradingMode      string            `json:"trading_mode"`
		PnL              domain.PnLSummary `json:"pnl"`
		OpenPositions    int               `json:"open_positions"`
		AvailableCapital float64           `json:"available_capital"`
	}
	getJSON(t, srv.URL+"/api/status", &body)
	if body.Status != "running" || body.Mode != "agent" || body.TradingMode != "paper" {
		t.Fatalf("body = %+v", body)
	}
	if body.OpenPositions != 1 || body.AvailableCapital != 980 || body.PnL.TotalTrades != 3 {
		t.Fatalf("body = %+v", body)
	}
}

func TestTradesLimit(t *testing.T) {
	srv, trades := newTestServer(t, Config{})
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=10", 10},
		{"?limit=9000", 500},
		{"?limit=-3", 50},
		{"?limit=abc", 50},
	}
	for _, tt := range tests {
		var out []domain.TradeRecord
		getJSON(t, srv.URL+"/api/trades"+tt.query, &out)
		if trades.lastLimit != tt.want {
			t.Errorf("limit for %q = %d, want %d", tt.query, trades.lastLimit, tt.want)
		}
		if len(out) != 1 {
			t.Errorf("got %d trades", len(out))
		}
	}
}

func TestOpenTradesAndPnL(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	var open []domain.TradeRecord
	getJSON(t, srv.URL+"/api/trades/open", &open)
	if len(open) != 1 || open[0].OrderID != "paper-1" {
		t.Fatalf("open = %+v", open)
	}
	var sum domain.PnLSummary
	getJSON(t, srv.URL+"/api/pnl", &sum)
	if sum.Wins != 2 || sum.TotalPnL != 7.5 {
		t.Fatalf("pnl = %+v", sum)
	}
}

func TestCloseTrade(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"ok", "paper-1", `{"exit_price":0.61}`, http.StatusOK},
		{"unknown", "paper-9", `{"exit_price":0.61}`, http.StatusNotFound},
		{"out of range", "paper-1", `{"exit_price":1.5}`, http.StatusBadRequest},
		{"missing price", "paper-1", `{}`, http.StatusBadRequest},
		{"garbage", "paper-1", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/trades/"+tt.id+"/close", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMetricsExposition(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret"})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "polycouncil_") {
		t.Fatalf("exposition missing polycouncil metrics:\n%s", body)
	}
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret"})

	if code := getJSON(t, srv.URL+"/api/health", nil); code != http.StatusOK {
		t.Fatalf("health should be public, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/pnl", nil); code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", code)
	}

	for _, hdr := range []struct{ key, val string }{
		{"Authorization", "Bearer secret"},
		{"X-API-Key", "secret"},
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/pnl", nil)
		req.Header.Set(hdr.key, hdr.val)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d", hdr.key, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/pnl", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Config{CORSOrigins: []string{"http://dash.local"}, APIKey: "secret"})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/trades", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimit: 1})
	first := getJSON(t, srv.URL+"/api/health", nil)
	second := getJSON(t, srv.URL+"/api/health", nil)
	if first != http.StatusOK || second != http.StatusTooManyRequests {
		t.Fatalf("codes = %d, %d", first, second)
	}
}

func TestOdds(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	var list []struct {
		TokenID  string  `json:"token_id"`
		Symbol   string  `json:"symbol"`
		Midpoint float64 `json:"midpoint"`
	}
	if code := getJSON(t, srv.URL+"/api/odds", &list); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if asked := testOdds.lastAsked(); len(asked) != 2 {
		t.Fatalf("asked for %v, want every known market", asked)
	}
	if len(list) != 1 || list[0].Symbol != "BTCUSDT" || list[0].Midpoint != 0.61 {
		t.Fatalf("list = %+v", list)
	}

	list = nil
	getJSON(t, srv.URL+"/api/odds?token=tok-x&token=tok-missing", &list)
	if len(list) != 1 || list[0].TokenID != "tok-x" || list[0].Midpoint != 0.2 {
		t.Fatalf("token list = %+v", list)
	}

	var one struct {
		Market    domain.MarketRef `json:"market"`
		Midpoint  float64          `json:"midpoint"`
		UpdatedAt string           `json:"updated_at"`
	}
	if code := getJSON(t, srv.URL+"/api/odds/tok-btc", &one); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if one.Market.Symbol != "BTCUSDT" || one.Midpoint != 0.61 || one.UpdatedAt != "2023-11-14T22:13:20Z" {
		t.Fatalf("odds = %+v", one)
	}

	if code := getJSON(t, srv.URL+"/api/odds/tok-eth", nil); code != http.StatusNotFound {
		t.Fatalf("missing token status = %d, want 404", code)
	}
}
