package redis

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

func TestKeys(t *testing.T) {
	if got := OddsKey("123"); got != "odds:123" {
		t.Errorf("OddsKey = %q", got)
	}
	if got := LockKey("execution"); got != "lock:execution" {
		t.Errorf("LockKey = %q", got)
	}
}

func TestOddsFieldsRoundTrip(t *testing.T) {
	ts := time.Unix(1_700_000_000, 123)
	obs := domain.OddsObservation{
		Market:    domain.MarketRef{ConditionID: "c", TokenID: "t", Symbol: "btcusdt"},
		Midpoint:  0.535,
		Timestamp: ts,
	}
	raw := oddsFields(obs)
	vals := make(map[string]string, len(raw))
	for k, v := range raw {
		vals[k] = v.(string)
	}
	mid, got, ok := parseOdds(vals)
	if !ok || mid != 0.535 || !got.Equal(ts) {
		t.Fatalf("parseOdds = %v %v %v", mid, got, ok)
	}
	if vals["symbol"] != "btcusdt" {
		t.Fatalf("symbol = %q", vals["symbol"])
	}

	if _, _, ok := parseOdds(map[string]string{}); ok {
		t.Fatal("empty hash must not parse")
	}
}

func TestStreamPayload(t *testing.T) {
	if p, ok := streamPayload(map[string]any{"payload": "x"}); !ok || string(p) != "x" {
		t.Fatal("string payload")
	}
	if _, ok := streamPayload(map[string]any{"other": "x"}); ok {
		t.Fatal("missing payload must be skipped")
	}
}

func TestStreamMessagesOrdersTail(t *testing.T) {
	newestFirst := []redis.XMessage{
		{ID: "3-0", Values: map[string]any{"payload": "c"}},
		{ID: "2-0", Values: map[string]any{"other": "b"}},
		{ID: "1-0", Values: map[string]any{"payload": "a"}},
	}
	got := streamMessages(newestFirst, true)
	if len(got) != 2 || got[0].ID != "1-0" || string(got[1].Payload) != "c" {
		t.Fatalf("tail = %+v", got)
	}

	got = streamMessages(newestFirst, false)
	if len(got) != 2 || got[0].ID != "3-0" {
		t.Fatalf("forward = %+v", got)
	}
}
