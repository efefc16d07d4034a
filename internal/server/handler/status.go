package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// Portfolio reports the live exposure figures.
type Portfolio interface {
	OpenCount(ctx context.Context) (int, error)
	AvailableCapital(ctx context.Context) (float64, error)
}

// PnLSource aggregates realized results.
type PnLSource interface {
	GetPnLSummary(ctx context.Context) (domain.PnLSummary, error)
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	mode        string
	tradingMode string
	portfolio   Portfolio
	pnl         PnLSource
	logger      *slog.Logger
}

func NewStatusHandler(mode, tradingMode string, portfolio Portfolio, pnl PnLSource, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:        mode,
		tradingMode: tradingMode,
		portfolio:   portfolio,
		pnl:         pnl,
		logger:      logger.With(slog.String("handler", "status")),
	}
}

func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pnl, err := h.pnl.GetPnLSummary(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "pnl summary failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load pnl")
		return
	}
	open, err := h.portfolio.OpenCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}
	available, err := h.portfolio.AvailableCapital(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load capital")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "running",
		"mode":              h.mode,
		"trading_mode":      h.tradingMode,
		"pnl":               pnl,
		"open_positions":    open,
		"available_capital": available,
	})
}
