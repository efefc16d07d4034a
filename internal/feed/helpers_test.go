package feed

import (
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func market(sym, tok string) domain.MarketRef {
	return domain.MarketRef{ConditionID: "c-" + tok, TokenID: tok, Symbol: sym, Question: "q", Outcome: "Yes"}
}

func oddsAt(m domain.MarketRef, mid float64, ts time.Time) domain.OddsObservation {
	return domain.OddsObservation{Market: m, Midpoint: mid, Timestamp: ts}
}
