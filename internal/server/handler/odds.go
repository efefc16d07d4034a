package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// OddsHandler serves the midpoints mirrored in the odds cache.
type OddsHandler struct {
	cache   domain.OddsCache
	markets []domain.MarketRef
	logger  *slog.Logger
}

// NewOddsHandler lists markets by default; callers may ask for other tokens
// with ?token=.
func NewOddsHandler(cache domain.OddsCache, markets []domain.MarketRef, logger *slog.Logger) *OddsHandler {
	return &OddsHandler{cache: cache, markets: markets, logger: logger.With(slog.String("handler", "odds"))}
}

type oddsEntry struct {
	domain.MarketRef
	Midpoint float64 `json:"midpoint"`
}

// List handles GET /api/odds. Tokens with no cached midpoint are omitted.
func (h *OddsHandler) List(w http.ResponseWriter, r *http.Request) {
	refs := h.markets
	if tokens := r.URL.Query()["token"]; len(tokens) > 0 {
		refs = make([]domain.MarketRef, 0, len(tokens))
		for _, t := range tokens {
			refs = append(refs, h.lookup(t))
		}
	}

	ids := make([]string, 0, len(refs))
	for _, m := range refs {
		ids = append(ids, m.TokenID)
	}
	mids, err := h.cache.GetMany(r.Context(), ids)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get odds failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load odds")
		return
	}

	out := make([]oddsEntry, 0, len(mids))
	for _, m := range refs {
		if mid, ok := mids[m.TokenID]; ok {
			out = append(out, oddsEntry{MarketRef: m, Midpoint: mid})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/odds/{token}.
func (h *OddsHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	mid, ts, err := h.cache.GetOdds(r.Context(), token)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no odds for token "+token)
	case err != nil:
		h.logger.ErrorContext(r.Context(), "get odds failed", slog.String("token", token), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load odds")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"market":     h.lookup(token),
			"midpoint":   mid,
			"updated_at": ts.UTC().Format(time.RFC3339Nano),
		})
	}
}

func (h *OddsHandler) lookup(token string) domain.MarketRef {
	for _, m := range h.markets {
		if m.TokenID == token {
			return m
		}
	}
	return domain.MarketRef{TokenID: token}
}
