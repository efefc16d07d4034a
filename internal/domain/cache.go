package domain

import (
	"context"
	"time"
)

// OddsCache mirrors the newest odds per token outside the process.
type OddsCache interface {
	SetOdds(ctx context.Context, obs OddsObservation) error
	GetOdds(ctx context.Context, tokenID string) (float64, time.Time, error)
	GetMany(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channel and stream names.
const (
	ChannelSignal   = "ch:signal"
	ChannelDecision = "ch:decision"
	ChannelTrade    = "ch:trade"

	StreamDecisions = "stream:decisions"
)
