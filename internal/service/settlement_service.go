package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/notify"
)

// EventNotifier delivers operator notifications.
type EventNotifier interface {
	Notify(ctx context.Context, event notify.Event, title, message string) error
}

// SettlementService closes open trades at an operator-supplied exit price.
type SettlementService struct {
	trades   domain.TradeStore
	bus      domain.SignalBus // optional
	notifier EventNotifier    // optional
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService. bus and notifier may be nil.
func NewSettlementService(trades domain.TradeStore, bus domain.SignalBus, notifier EventNotifier, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		trades:   trades,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// RealizedPnL returns the profit of closing t at exit. Both sides are
// measured per dollar of entry price.
func RealizedPnL(t domain.TradeRecord, exit float64) float64 {
	if t.EntryPrice <= 0 {
		return 0
	}
	if t.Side == domain.OrderSideSell {
		return (t.EntryPrice - exit) * t.SizeUSD / t.EntryPrice
	}
	return (exit - t.EntryPrice) * t.SizeUSD / t.EntryPrice
}

// Close settles the open trade orderID. Unknown and already closed trades
// yield domain.ErrNotFound.
func (s *SettlementService) Close(ctx context.Context, orderID string, exitPrice float64) (domain.TradeRecord, error) {
	if exitPrice < 0 || exitPrice > 1 {
		return domain.TradeRecord{}, fmt.Errorf("settlement: exit price %v outside [0, 1]: %w", exitPrice, domain.ErrInvalidOrder)
	}

	t, err := s.trades.GetTrade(ctx, orderID)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("settlement: get trade %s: %w", orderID, err)
	}
	if !t.IsOpen() {
		return domain.TradeRecord{}, fmt.Errorf("settlement: trade %s already closed: %w", orderID, domain.ErrNotFound)
	}

	pnl := RealizedPnL(t, exitPrice)
	if err := s.trades.CloseTrade(ctx, orderID, exitPrice, pnl); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("settlement: close trade %s: %w", orderID, err)
	}

	now := time.Now().UTC()
	t.ExitPrice, t.PnL, t.ClosedAt = &exitPrice, &pnl, &now

	s.logger.InfoContext(ctx, "trade closed",
		slog.String("order_id", orderID),
		slog.String("symbol", t.Symbol),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("pnl", pnl),
	)
	s.publish(ctx, t)
	if s.notifier != nil {
		title, msg := notify.TradeClosed(t, exitPrice, pnl)
		if err := s.notifier.Notify(ctx, notify.EventTradeClosed, title, msg); err != nil {
			s.logger.WarnContext(ctx, "notify trade_closed failed", slog.String("error", err.Error()))
		}
	}
	return t, nil
}

func (s *SettlementService) publish(ctx context.Context, t domain.TradeRecord) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{"event": "trade_closed", "trade": t})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelTrade, payload); err != nil {
		s.logger.WarnContext(ctx, "publish trade_closed failed", slog.String("error", err.Error()))
	}
}
