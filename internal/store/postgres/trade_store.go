package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// TradeStore implements domain.TradeStore and domain.ArchiveSource.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore on pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, order_id, symbol, condition_id, token_id, side, size_usd,
	entry_price, exit_price, pnl, is_paper, signal_score, sentiment, confidence,
	verdict, council_reasoning, opened_at, closed_at`

const signalCols = `symbol, condition_id, token_id, price, momentum_pct, odds_midpoint,
	implied_fair_odds, edge_pct, signal_score, direction, council_action, timestamp`

// LogTrade inserts rec and returns its row id.
func (s *TradeStore) LogTrade(ctx context.Context, rec domain.TradeRecord) (int64, error) {
	const q = `
		INSERT INTO trades (order_id, symbol, condition_id, token_id, side, size_usd,
			entry_price, is_paper, signal_score, sentiment, confidence, verdict,
			council_reasoning, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	opened := rec.OpenedAt
	if opened.IsZero() {
		opened = time.Now().UTC()
	}
	var id int64
	err := s.pool.QueryRow(ctx, q,
		rec.OrderID, rec.Symbol, rec.ConditionID, rec.TokenID, rec.Side.String(), rec.SizeUSD,
		rec.EntryPrice, rec.IsPaper, rec.SignalScore, rec.Sentiment.String(), rec.Confidence,
		rec.Verdict.String(), domain.Truncate(rec.CouncilReasoning, domain.MaxReasoningLen), opened,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: log trade %s: %w", rec.OrderID, err)
	}
	return id, nil
}

// LogSignal inserts an evaluated signal.
func (s *TradeStore) LogSignal(ctx context.Context, rec domain.SignalRecord) error {
	sig := rec.Signal
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO signals (`+signalCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sig.Symbol, sig.Market.ConditionID, sig.Market.TokenID, sig.Price, sig.MomentumPct,
		sig.OddsMidpoint, sig.ImpliedFairOdds, sig.EdgePct, sig.Score, sig.Direction.String(),
		rec.CouncilAction.String(), ts,
	)
	if err != nil {
		return fmt.Errorf("postgres: log signal %s: %w", sig.Symbol, err)
	}
	return nil
}

// GetOpenTrades returns unsettled trades, newest first.
func (s *TradeStore) GetOpenTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	return s.queryTrades(ctx, "open trades",
		`SELECT `+tradeCols+` FROM trades WHERE closed_at IS NULL ORDER BY opened_at DESC`)
}

// GetRecentTrades returns up to limit trades, newest first.
func (s *TradeStore) GetRecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	return s.queryTrades(ctx, "recent trades",
		`SELECT `+tradeCols+` FROM trades ORDER BY opened_at DESC LIMIT $1`, limit)
}

// GetTrade returns the trade with orderID or domain.ErrNotFound.
func (s *TradeStore) GetTrade(ctx context.Context, orderID string) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeCols+` FROM trades WHERE order_id = $1`, orderID)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TradeRecord{}, fmt.Errorf("postgres: trade %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", orderID, err)
	}
	return t, nil
}

// CloseTrade settles an open trade. Closed or unknown trades yield
// domain.ErrNotFound.
func (s *TradeStore) CloseTrade(ctx context.Context, orderID string, exitPrice, pnl float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE trades SET exit_price = $2, pnl = $3, closed_at = $4
		WHERE order_id = $1 AND closed_at IS NULL`,
		orderID, exitPrice, pnl, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: close trade %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: close trade %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

// GetPnLSummary aggregates over every trade.
func (s *TradeStore) GetPnLSummary(ctx context.Context) (domain.PnLSummary, error) {
	const q = `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE pnl > 0),
			COUNT(*) FILTER (WHERE pnl < 0),
			COUNT(*) FILTER (WHERE pnl IS NULL),
			COALESCE(SUM(pnl), 0),
			COALESCE(AVG(pnl), 0),
			COALESCE(SUM(size_usd), 0)
		FROM trades`
	var p domain.PnLSummary
	err := s.pool.QueryRow(ctx, q).Scan(
		&p.TotalTrades, &p.Wins, &p.Losses, &p.Open, &p.TotalPnL, &p.AvgPnL, &p.TotalVolume)
	if err != nil {
		return domain.PnLSummary{}, fmt.Errorf("postgres: pnl summary: %w", err)
	}
	p.WinRate = WinRate(p.Wins, p.Losses)
	return p, nil
}

// WinRate is wins over settled non-flat trades, in percent.
func WinRate(wins, losses int64) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses) * 100
}

// ListClosedTradesBetween returns trades closed in [from, to).
func (s *TradeStore) ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error) {
	return s.queryTrades(ctx, "closed trades",
		`SELECT `+tradeCols+` FROM trades WHERE closed_at >= $1 AND closed_at < $2 ORDER BY closed_at`, from, to)
}

// ListSignalsBetween returns signals recorded in [from, to).
func (s *TradeStore) ListSignalsBetween(ctx context.Context, from, to time.Time) ([]domain.SignalRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalCols+` FROM signals WHERE timestamp >= $1 AND timestamp < $2 ORDER BY timestamp`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	var out []domain.SignalRecord
	for rows.Next() {
		var (
			r           domain.SignalRecord
			dir, action string
		)
		sig := &r.Signal
		if err := rows.Scan(&sig.Symbol, &sig.Market.ConditionID, &sig.Market.TokenID, &sig.Price,
			&sig.MomentumPct, &sig.OddsMidpoint, &sig.ImpliedFairOdds, &sig.EdgePct, &sig.Score,
			&dir, &action, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Market.Symbol = sig.Symbol
		sig.DetectedAt = r.Timestamp
		if sig.Direction, err = domain.ParseDirection(dir); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		if r.CouncilAction, err = domain.ParseTradeAction(action); err != nil {
			r.CouncilAction = domain.ActionSkip
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *TradeStore) queryTrades(ctx context.Context, what, q string, args ...any) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", what, err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", what, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", what, err)
	}
	return out, nil
}

func scanTrade(row pgx.Row) (domain.TradeRecord, error) {
	var (
		t                        domain.TradeRecord
		side, sentiment, verdict string
	)
	if err := row.Scan(&t.ID, &t.OrderID, &t.Symbol, &t.ConditionID, &t.TokenID, &side,
		&t.SizeUSD, &t.EntryPrice, &t.ExitPrice, &t.PnL, &t.IsPaper, &t.SignalScore,
		&sentiment, &t.Confidence, &verdict, &t.CouncilReasoning, &t.OpenedAt, &t.ClosedAt); err != nil {
		return domain.TradeRecord{}, err
	}
	var err error
	if t.Side, err = domain.ParseOrderSide(side); err != nil {
		return domain.TradeRecord{}, err
	}
	// Older rows may carry empty labels.
	if t.Sentiment, err = domain.ParseSentiment(sentiment); err != nil {
		t.Sentiment = domain.SentimentNeutral
	}
	if t.Verdict, err = domain.ParseTradeAction(verdict); err != nil {
		t.Verdict = domain.ActionSkip
	}
	return t, nil
}
