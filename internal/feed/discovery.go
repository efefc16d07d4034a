package feed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polycouncil/internal/domain"
	"github.com/alanyoungcy/polycouncil/internal/platform/polymarket"
)

// EventSource lists active events for a discovery tag.
type EventSource interface {
	GetEvents(ctx context.Context, tag string, limit int) ([]polymarket.APIEvent, error)
}

// Discovery finds the prediction markets that track the configured symbols.
type Discovery struct {
	source   EventSource
	tags     []string
	limit    int
	symbols  []string
	keywords map[string][]string
	logger   *slog.Logger
}

// NewDiscovery creates a Discovery. symbols fixes both the set of symbols
// and the order in which their keywords are tried.
func NewDiscovery(source EventSource, tags []string, limit int, symbols []string, keywords map[string][]string, logger *slog.Logger) *Discovery {
	return &Discovery{
		source:   source,
		tags:     tags,
		limit:    limit,
		symbols:  symbols,
		keywords: keywords,
		logger:   logger.With(slog.String("component", "discovery")),
	}
}

// Discover queries every tag and returns the matched markets, one per
// outcome token, deduplicated on condition and token id. A failing tag is
// logged and skipped.
func (d *Discovery) Discover(ctx context.Context) ([]domain.MarketRef, error) {
	seen := make(map[string]struct{})
	var out []domain.MarketRef

	for _, tag := range d.tags {
		events, err := d.source.GetEvents(ctx, tag, d.limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("discovery tag failed", slog.String("tag", tag), slog.String("error", err.Error()))
			continue
		}
		for _, ev := range events {
			for i := range ev.Markets {
				m := &ev.Markets[i]
				sym, ok := d.MatchSymbol(m.Question, ev.Title)
				if !ok {
					continue
				}
				for _, ref := range m.MarketRefs(sym) {
					if _, dup := seen[ref.Key()]; dup {
						continue
					}
					seen[ref.Key()] = struct{}{}
					out = append(out, ref)
				}
			}
		}
	}

	d.logger.Info("discovered markets", slog.Int("count", len(out)))
	return out, nil
}

// MatchSymbol maps free text to the first configured symbol whose keyword it
// contains. The question is tried before the fallback texts.
func (d *Discovery) MatchSymbol(question string, fallback ...string) (string, bool) {
	for _, text := range append([]string{question}, fallback...) {
		lower := strings.ToLower(text)
		for _, sym := range d.symbols {
			for _, kw := range d.keywords[sym] {
				if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
					return sym, true
				}
			}
		}
	}
	return "", false
}
