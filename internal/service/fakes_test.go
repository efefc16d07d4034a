package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/notify"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeStore struct {
	mu      sync.Mutex
	trades  []domain.TradeRecord
	openErr error
}

func (f *fakeStore) LogTrade(_ context.Context, rec domain.TradeRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = int64(len(f.trades) + 1)
	f.trades = append(f.trades, rec)
	return rec.ID, nil
}

func (f *fakeStore) LogSignal(context.Context, domain.SignalRecord) error { return nil }

func (f *fakeStore) GetOpenTrades(context.Context) ([]domain.TradeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	var out []domain.TradeRecord
	for _, t := range f.trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRecentTrades(context.Context, int) ([]domain.TradeRecord, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetTrade(_ context.Context, orderID string) (domain.TradeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.trades {
		if t.OrderID == orderID {
			return t, nil
		}
	}
	return domain.TradeRecord{}, domain.ErrNotFound
}

func (f *fakeStore) CloseTrade(_ context.Context, orderID string, exit, pnl float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.trades {
		if t.OrderID == orderID && t.IsOpen() {
			now := time.Now()
			f.trades[i].ExitPrice, f.trades[i].PnL, f.trades[i].ClosedAt = &exit, &pnl, &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) GetPnLSummary(context.Context) (domain.PnLSummary, error) {
	return domain.PnLSummary{}, nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (n *fakeNotifier) Notify(_ context.Context, e notify.Event, _, _ string) error {
	n.events = append(n.events, e)
	return nil
}

func openTrade(id string, side domain.OrderSide, size, entry float64) domain.TradeRecord {
	return domain.TradeRecord{OrderID: id, Symbol: "btcusdt", Side: side, SizeUSD: size, EntryPrice: entry, OpenedAt: time.Now()}
}
