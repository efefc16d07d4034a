// Package binance is a minimal client for the exchange's public ticker stream.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

const (
	// readTimeout drops a silent connection so it can be re-dialed.
	readTimeout = 30 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TickHandler receives every parsed ticker update.
type TickHandler func(ctx context.Context, obs domain.PriceObservation)

// Client streams 24h ticker updates for a fixed set of symbols.
type Client struct {
	url    string
	dialer websocket.Dialer
	logger *slog.Logger
}

// NewClient creates a client for host (e.g. "wss://stream.binance.com:9443").
func NewClient(host string, symbols []string, logger *slog.Logger) *Client {
	return &Client{
		url:    StreamURL(host, symbols),
		dialer: websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		logger: logger.With(slog.String("component", "binance_ws")),
	}
}

// Run connects and dispatches ticks to handle until ctx is cancelled. Dropped
// connections are re-dialed with exponential backoff.
func (c *Client) Run(ctx context.Context, handle TickHandler) error {
	delay := reconnectDelay
	for {
		connected, err := c.runConnection(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = reconnectDelay
		}
		c.logger.WarnContext(ctx, "binance ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection serves one connection. connected reports whether the dial
// succeeded, which resets the backoff.
func (c *Client) runConnection(ctx context.Context, handle TickHandler) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("binance: connect: %w", err)
	}
	defer conn.Close()

	c.logger.InfoContext(ctx, "binance ws connected", slog.String("url", c.url))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("binance: read: %w", err)
		}

		obs, err := parseFrame(raw)
		if err != nil {
			c.logger.DebugContext(ctx, "binance: skipping frame", slog.String("error", err.Error()))
			continue
		}
		handle(ctx, obs)
	}
}

var errNotTicker = errors.New("binance: not a ticker frame")

// parseFrame accepts both combined-stream envelopes and raw ticker payloads.
func parseFrame(raw []byte) (domain.PriceObservation, error) {
	var env combinedMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.PriceObservation{}, fmt.Errorf("binance: decode: %w", err)
	}
	t := env.Data
	if env.Stream == "" {
		if err := json.Unmarshal(raw, &t); err != nil {
			return domain.PriceObservation{}, fmt.Errorf("binance: decode: %w", err)
		}
	}
	if t.Symbol == "" || t.LastPrice == "" {
		return domain.PriceObservation{}, errNotTicker
	}
	return t.toDomain()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
