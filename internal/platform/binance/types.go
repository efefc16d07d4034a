package binance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// combinedMessage is the envelope of a combined-stream frame.
type combinedMessage struct {
	Stream string        `json:"stream"`
	Data   tickerMessage `json:"data"`
}

// tickerMessage is the 24h rolling ticker payload. Numeric fields arrive as
// strings.
type tickerMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	Volume    string `json:"v"`
	ChangePct string `json:"P"`
}

// toDomain converts a ticker payload into a PriceObservation. The symbol is
// lower-cased to match stream names and configuration keys.
func (t tickerMessage) toDomain() (domain.PriceObservation, error) {
	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("binance: parse price %q: %w", t.LastPrice, err)
	}
	vol, _ := strconv.ParseFloat(t.Volume, 64)
	chg, _ := strconv.ParseFloat(t.ChangePct, 64)

	ts := time.Now().UTC()
	if t.EventTime > 0 {
		ts = time.UnixMilli(t.EventTime).UTC()
	}
	return domain.PriceObservation{
		Symbol:    strings.ToLower(t.Symbol),
		Price:     price,
		Volume:    vol,
		Change24h: chg,
		Timestamp: ts,
	}, nil
}

// StreamURL builds the combined ticker stream URL for the given symbols.
func StreamURL(host string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@ticker")
	}
	return strings.TrimRight(host, "/") + "/stream?streams=" + strings.Join(streams, "/")
}
