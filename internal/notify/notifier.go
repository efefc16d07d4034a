// Package notify fans agent events out to chat channels (Telegram, Discord).
// Operators choose which event types they receive.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event names a notification type.
type Event string

const (
	EventTradeExecuted Event = "trade_executed"
	EventTradeClosed   Event = "trade_closed"
	EventRiskBlocked   Event = "risk_blocked"
	EventAgentStarted  Event = "agent_started"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches events to every sender, subject to the event filter.
// A nil *Notifier drops everything.
type Notifier struct {
	senders []Sender
	allowed map[Event]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[Event(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Allows reports whether event passes the filter.
func (n *Notifier) Allows(event Event) bool {
	return len(n.allowed) == 0 || n.allowed[event]
}

// Notify delivers one event. Every sender is tried; failures are joined.
func (n *Notifier) Notify(ctx context.Context, event Event, title, message string) error {
	if n == nil || len(n.senders) == 0 {
		return nil
	}
	if !n.Allows(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(event)))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", string(event)),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s: %w", event, errors.Join(errs...))
	}
	return nil
}
