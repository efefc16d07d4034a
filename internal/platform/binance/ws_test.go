package binance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

func TestStreamURL(t *testing.T) {
	got := StreamURL("wss://stream.binance.com:9443/", []string{"BTCUSDT", "ethusdt"})
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@ticker/ethusdt@ticker"
	if got != want {
		t.Fatalf("StreamURL = %q, want %q", got, want)
	}
}

func TestParseFrame(t *testing.T) {
	combined := `{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"87000.50","v":"1234.5","P":"-1.25"}}`
	obs, err := parseFrame([]byte(combined))
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if obs.Symbol != "btcusdt" || obs.Price != 87000.50 || obs.Volume != 1234.5 || obs.Change24h != -1.25 {
		t.Fatalf("unexpected observation: %+v", obs)
	}
	if !obs.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("timestamp = %v", obs.Timestamp)
	}

	if _, err := parseFrame([]byte(`{"result":null,"id":1}`)); err == nil {
		t.Fatal("expected error for non-ticker frame")
	}
	if _, err := parseFrame([]byte(`{"s":"ETHUSDT","c":"abc"}`)); err == nil {
		t.Fatal("expected error for bad price")
	}
}

func TestClientRunDispatchesTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "btcusdt@ticker") {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","c":"87001","v":"10","P":"0.5"}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	host := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(host, []string{"btcusdt"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.PriceObservation, 1)
	go c.Run(ctx, func(_ context.Context, obs domain.PriceObservation) {
		select {
		case got <- obs:
		default:
		}
	})

	select {
	case obs := <-got:
		if obs.Symbol != "btcusdt" || obs.Price != 87001 {
			t.Fatalf("unexpected tick %+v", obs)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for tick")
	}
}
