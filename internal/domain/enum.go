package domain

import (
	"fmt"
	"strings"
)

// Direction is the expected move of the underlying asset.
type Direction int

const (
	DirectionDown Direction = iota
	DirectionUp
)

var directionNames = map[Direction]string{
	DirectionDown: "DOWN",
	DirectionUp:   "UP",
}

func (d Direction) String() string { return enumName(directionNames, d) }

// ParseDirection maps a stored or wire value back to a Direction.
func ParseDirection(s string) (Direction, error) { return parseEnum(directionNames, "direction", s) }

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) (err error) {
	*d, err = ParseDirection(string(b))
	return err
}

// Sentiment is the classification produced by the first council stage.
type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentBullish
	SentimentBearish
)

var sentimentNames = map[Sentiment]string{
	SentimentNeutral: "NEUTRAL",
	SentimentBullish: "BULLISH",
	SentimentBearish: "BEARISH",
}

func (s Sentiment) String() string { return enumName(sentimentNames, s) }

// ParseSentiment maps a stored or wire value back to a Sentiment.
func ParseSentiment(s string) (Sentiment, error) { return parseEnum(sentimentNames, "sentiment", s) }

func (s Sentiment) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Sentiment) UnmarshalText(b []byte) (err error) {
	*s, err = ParseSentiment(string(b))
	return err
}

// TradeAction is the final verdict of the council. The zero value is SKIP.
type TradeAction int

const (
	ActionSkip TradeAction = iota
	ActionTrade
)

var actionNames = map[TradeAction]string{
	ActionSkip:  "SKIP",
	ActionTrade: "TRADE",
}

func (a TradeAction) String() string { return enumName(actionNames, a) }

// ParseTradeAction maps a stored or wire value back to a TradeAction.
func ParseTradeAction(s string) (TradeAction, error) { return parseEnum(actionNames, "action", s) }

func (a TradeAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *TradeAction) UnmarshalText(b []byte) (err error) {
	*a, err = ParseTradeAction(string(b))
	return err
}

// OrderSide indicates whether an order buys or sells the outcome token.
type OrderSide int

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

var sideNames = map[OrderSide]string{
	OrderSideBuy:  "BUY",
	OrderSideSell: "SELL",
}

func (s OrderSide) String() string { return enumName(sideNames, s) }

// ParseOrderSide maps a stored or wire value back to an OrderSide.
func ParseOrderSide(s string) (OrderSide, error) { return parseEnum(sideNames, "side", s) }

func (s OrderSide) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OrderSide) UnmarshalText(b []byte) (err error) {
	*s, err = ParseOrderSide(string(b))
	return err
}

// SideFor maps a signal direction to the order side that expresses it.
func SideFor(d Direction) OrderSide {
	if d == DirectionUp {
		return OrderSideBuy
	}
	return OrderSideSell
}

func enumName[T ~int](names map[T]string, v T) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", v)
}

func parseEnum[T comparable](names map[T]string, kind, s string) (T, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for v, n := range names {
		if n == want {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %q: %w", kind, s, ErrUnknownEnum)
}
