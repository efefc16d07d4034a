package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"trade_closed", " risk_blocked "}, discard())

	ctx := context.Background()
	_ = n.Notify(ctx, EventTradeExecuted, "a", "")
	_ = n.Notify(ctx, EventTradeClosed, "b", "")
	_ = n.Notify(ctx, EventRiskBlocked, "c", "")

	if got := strings.Join(s.titles, ","); got != "b,c" {
		t.Fatalf("delivered %q, want b,c", got)
	}

	all := NewNotifier([]Sender{s}, nil, discard())
	if !all.Allows(EventAgentStarted) {
		t.Fatal("empty filter should allow every event")
	}
}

func TestNotifierJoinsFailures(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventAgentStarted, "hi", "")
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("err = %v", err)
	}
	if len(good.titles) != 1 {
		t.Fatal("a failing sender must not stop the others")
	}

	var nilNotifier *Notifier
	if err := nilNotifier.Notify(context.Background(), EventAgentStarted, "x", ""); err != nil {
		t.Fatalf("nil notifier: %v", err)
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "TOKEN", "42")
	if err := s.Send(context.Background(), "Title", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if got["chat_id"] != "42" || got["text"] != "*Title*\nbody" || got["parse_mode"] != "Markdown" {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}
