package executor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/notify"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memStore struct {
	mu      sync.Mutex
	trades  []domain.TradeRecord
	signals []domain.SignalRecord
	logErr  error
}

func (m *memStore) LogTrade(_ context.Context, rec domain.TradeRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return 0, m.logErr
	}
	rec.ID = int64(len(m.trades) + 1)
	m.trades = append(m.trades, rec)
	return rec.ID, nil
}

func (m *memStore) LogSignal(_ context.Context, rec domain.SignalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, rec)
	return nil
}

func (m *memStore) GetOpenTrades(context.Context) ([]domain.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TradeRecord, 0, len(m.trades))
	for _, t := range m.trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetRecentTrades(ctx context.Context, _ int) ([]domain.TradeRecord, error) {
	return m.GetOpenTrades(ctx)
}

func (m *memStore) GetTrade(context.Context, string) (domain.TradeRecord, error) {
	return domain.TradeRecord{}, domain.ErrNotFound
}

func (m *memStore) CloseTrade(context.Context, string, float64, float64) error { return nil }

func (m *memStore) GetPnLSummary(context.Context) (domain.PnLSummary, error) {
	return domain.PnLSummary{}, nil
}

type staticRisk struct {
	ok     bool
	reason string
}

func (s staticRisk) CanTrade(context.Context, float64) (bool, string, error) { return s.ok, s.reason, nil }
func (s staticRisk) AvailableCapital(context.Context) (float64, error)      { return 1000, nil }

type fakeVenue struct {
	mid     float64
	midErr  error
	receipt domain.OrderReceipt
	placed  []domain.OrderRequest
}

func (f *fakeVenue) Midpoint(context.Context, string) (float64, error) { return f.mid, f.midErr }

func (f *fakeVenue) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderReceipt, error) {
	f.placed = append(f.placed, req)
	return f.receipt, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type recordingBus struct {
	mu        sync.Mutex
	published map[string]int
	streamed  int
}

func (b *recordingBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string]int{}
	}
	b.published[channel]++
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *recordingBus) StreamAppend(context.Context, string, []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed++
	return nil
}

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type countingLock struct {
	mu       sync.Mutex
	acquired int
}

func (l *countingLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return func() {}, nil
}

type stubCouncil struct {
	mu      sync.Mutex
	verdict domain.TradeVerdict
	calls   int
}

func (s *stubCouncil) Evaluate(_ context.Context, sig domain.DivergenceSignal, _ float64) domain.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.Decision{
		Signal:     sig,
		Sentiment:  domain.SentimentResult{Sentiment: domain.SentimentBullish},
		Confidence: domain.ConfidenceGrade{Confidence: 0.8},
		Verdict:    s.verdict,
	}
}

func tradeDecision(size float64, dir domain.Direction) domain.Decision {
	return domain.Decision{
		Signal: domain.DivergenceSignal{
			Symbol: "btcusdt", OddsMidpoint: 0.42, Direction: dir, Score: 0.7,
			Market: domain.MarketRef{ConditionID: "c1", TokenID: "t1", Symbol: "btcusdt"},
		},
		Verdict: domain.TradeVerdict{Action: domain.ActionTrade, SizeUSD: size, Reasoning: "go"},
	}
}
