package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.PriceTick("btcusdt", 87000)
	r.PriceTick("btcusdt", 87010)
	r.Rejection("edge")
	r.Decision("SKIP", 2*time.Second)

	if got := testutil.ToFloat64(r.ticks.WithLabelValues("btcusdt")); got != 2 {
		t.Fatalf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("btcusdt")); got != 87010 {
		t.Fatalf("last price = %v", got)
	}
	if got := testutil.ToFloat64(r.decisions.WithLabelValues("SKIP")); got != 1 {
		t.Fatalf("decisions = %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.PriceTick("x", 1)
	r.Signal("x", "UP")
	r.Status(1, 2, 3)
}
