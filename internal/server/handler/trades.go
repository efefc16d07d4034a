package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// TradeReader is the read side of the trade store.
type TradeReader interface {
	GetRecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
	GetOpenTrades(ctx context.Context) ([]domain.TradeRecord, error)
	GetPnLSummary(ctx context.Context) (domain.PnLSummary, error)
}

// Settler closes a trade manually.
type Settler interface {
	Close(ctx context.Context, orderID string, exitPrice float64) (domain.TradeRecord, error)
}

// TradeHandler serves the /api/trades and /api/pnl routes.
type TradeHandler struct {
	trades  TradeReader
	settler Settler
	logger  *slog.Logger
}

func NewTradeHandler(trades TradeReader, settler Settler, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, settler: settler, logger: logger.With(slog.String("handler", "trades"))}
}

// ListRecent handles GET /api/trades?limit=N.
func (h *TradeHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.GetRecentTrades(r.Context(), parseLimit(r))
	if err != nil {
		h.fail(w, r, "list recent trades", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(trades))
}

// ListOpen handles GET /api/trades/open.
func (h *TradeHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.GetOpenTrades(r.Context())
	if err != nil {
		h.fail(w, r, "list open trades", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(trades))
}

// PnL handles GET /api/pnl.
func (h *TradeHandler) PnL(w http.ResponseWriter, r *http.Request) {
	sum, err := h.trades.GetPnLSummary(r.Context())
	if err != nil {
		h.fail(w, r, "pnl summary", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type closeRequest struct {
	ExitPrice *float64 `json:"exit_price"`
}

// Close handles POST /api/trades/{id}/close with {"exit_price": 0.61}.
func (h *TradeHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req closeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.ExitPrice == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"exit_price\": <number>}")
		return
	}

	t, err := h.settler.Close(r.Context(), id, *req.ExitPrice)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no open trade "+id)
	case errors.Is(err, domain.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.fail(w, r, "close trade", err)
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *TradeHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func nonNil(t []domain.TradeRecord) []domain.TradeRecord {
	if t == nil {
		return []domain.TradeRecord{}
	}
	return t
}
