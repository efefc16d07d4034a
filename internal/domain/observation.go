package domain

import "time"

// PriceObservation is a single exchange ticker update.
type PriceObservation struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"` // base-asset volume over the exchange window
	Change24h float64   `json:"change_24h_pct"`
	Timestamp time.Time `json:"timestamp"`
}

// OddsObservation is a polled midpoint for one outcome token.
type OddsObservation struct {
	Market    MarketRef `json:"market"`
	Midpoint  float64   `json:"midpoint"`
	Timestamp time.Time `json:"timestamp"`
}

// Symbol is shorthand for the mapped exchange symbol.
func (o OddsObservation) Symbol() string { return o.Market.Symbol }

// PairedObservation joins a price tick with the newest odds for one market of
// the same symbol. It is never persisted.
type PairedObservation struct {
	Price PriceObservation
	Odds  OddsObservation
}
