package domain

import (
	"context"
	"time"
)

// TradeStore persists trades and evaluated signals.
type TradeStore interface {
	LogTrade(ctx context.Context, rec TradeRecord) (int64, error)
	LogSignal(ctx context.Context, rec SignalRecord) error
	GetOpenTrades(ctx context.Context) ([]TradeRecord, error)
	GetRecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)
	GetTrade(ctx context.Context, orderID string) (TradeRecord, error)
	CloseTrade(ctx context.Context, orderID string, exitPrice, pnl float64) error
	GetPnLSummary(ctx context.Context) (PnLSummary, error)
}

// ArchiveSource exposes the rows the archiver copies to cold storage.
type ArchiveSource interface {
	ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]TradeRecord, error)
	ListSignalsBetween(ctx context.Context, from, to time.Time) ([]SignalRecord, error)
}
