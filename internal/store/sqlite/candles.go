package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"trading-analyticsv1/internal/model"
)

const candleSchema = `
	CREATE TABLE IF NOT EXISTS candles_1m (
		time_minute            TEXT    NOT NULL,
		instrument_token       INTEGER NOT NULL,
		symbol                 TEXT,
		open                   REAL,
		high                   REAL,
		low                    REAL,
		close                  REAL,
		volume                 INTEGER,
		oi_start               INTEGER,
		oi_end                 INTEGER,
		oi_change              INTEGER,
		tick_count             INTEGER,
		bid_qty                INTEGER,
		ask_qty                INTEGER,
		weighted_bid_qty       REAL,
		weighted_ask_qty       REAL,
		bid_ask_ratio          REAL,
		weighted_bid_ask_ratio REAL,
		bid_orders             INTEGER,
		ask_orders             INTEGER,
		order_imbalance        INTEGER,
		depth_bias             TEXT,
		weighted_depth_bias    TEXT,
		PRIMARY KEY (instrument_token, time_minute)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_minute ON candles_1m(time_minute);
`

const candleColumns = `time_minute, instrument_token, COALESCE(symbol, ''), open, high, low, close,
	volume, oi_start, oi_end, oi_change, tick_count,
	bid_qty, ask_qty, weighted_bid_qty, weighted_ask_qty,
	bid_ask_ratio, weighted_bid_ask_ratio,
	bid_orders, ask_orders, order_imbalance,
	depth_bias, weighted_depth_bias`

// CandleStore holds the one-minute candle table.
type CandleStore struct {
	db *sql.DB
}

// NewCandleStore opens (and if necessary creates) the candle database.
func NewCandleStore(path string) (*CandleStore, error) {
	db, err := openWithSchema(path, "candles", candleSchema)
	if err != nil {
		return nil, err
	}
	return &CandleStore{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *CandleStore) DB() *sql.DB { return s.db }

// LastMinute returns the newest minute present, or "" for an empty table.
func (s *CandleStore) LastMinute(ctx context.Context) (string, error) {
	m, err := lastMinute(s.db.QueryRowContext(ctx, `SELECT MAX(time_minute) FROM candles_1m`))
	if err != nil {
		return "", fmt.Errorf("sqlite candles last minute: %w", err)
	}
	return m, nil
}

// UpsertCandles writes candles in a single transaction. An existing
// (instrument, minute) row is replaced, never duplicated.
func (s *CandleStore) UpsertCandles(ctx context.Context, candles []model.MinuteCandle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite candles begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles_1m (
			time_minute, instrument_token, symbol, open, high, low, close,
			volume, oi_start, oi_end, oi_change, tick_count,
			bid_qty, ask_qty, weighted_bid_qty, weighted_ask_qty,
			bid_ask_ratio, weighted_bid_ask_ratio,
			bid_orders, ask_orders, order_imbalance,
			depth_bias, weighted_depth_bias
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("sqlite candles prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx,
			c.Minute, c.Token, c.Symbol, c.Open, c.High, c.Low, c.Close,
			c.Volume, c.OIStart, c.OIEnd, c.OIChange, c.TickCount,
			c.BidQty, c.AskQty, c.WeightedBidQty, c.WeightedAskQty,
			c.BidAskRatio, c.WeightedBidAskRatio,
			c.BidOrders, c.AskOrders, c.OrderImbalance,
			c.DepthBias, c.WeightedDepthBias,
		)
		if err != nil {
			rollback(tx)
			return fmt.Errorf("sqlite candles insert %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// MinutesAfter lists distinct minutes strictly after after, ascending.
func (s *CandleStore) MinutesAfter(ctx context.Context, after string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT time_minute FROM candles_1m
		WHERE time_minute > ?
		ORDER BY time_minute ASC
	`, after)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candle minutes: %w", err)
	}
	defer rows.Close()

	var minutes []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("sqlite scan candle minute: %w", err)
		}
		minutes = append(minutes, m)
	}
	return minutes, rows.Err()
}

// CandlesAt returns all candles of one minute ordered by token.
func (s *CandleStore) CandlesAt(ctx context.Context, minute string) ([]model.MinuteCandle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candleColumns+` FROM candles_1m WHERE time_minute = ? ORDER BY instrument_token ASC`,
		minute)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles at %s: %w", minute, err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// History returns up to limit candles for token at or before upTo, oldest first.
func (s *CandleStore) History(ctx context.Context, token int64, upTo string, limit int) ([]model.MinuteCandle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+candleColumns+` FROM candles_1m
			WHERE instrument_token = ? AND time_minute <= ?
			ORDER BY time_minute DESC
			LIMIT ?
		) ORDER BY time_minute ASC
	`, token, upTo, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candle history %d: %w", token, err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// Close closes the database.
func (s *CandleStore) Close() error {
	return s.db.Close()
}

func scanCandles(rows *sql.Rows) ([]model.MinuteCandle, error) {
	var out []model.MinuteCandle
	for rows.Next() {
		var (
			c            model.MinuteCandle
			bias, wbias  sql.NullString
			wBid, wAsk   sql.NullFloat64
			ratio, wrat  sql.NullFloat64
			oiS, oiE     sql.NullInt64
			oiC, ticks   sql.NullInt64
			bidQ, askQ   sql.NullInt64
			bidO, askO   sql.NullInt64
			imbal, vol   sql.NullInt64
		)
		err := rows.Scan(
			&c.Minute, &c.Token, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close,
			&vol, &oiS, &oiE, &oiC, &ticks,
			&bidQ, &askQ, &wBid, &wAsk,
			&ratio, &wrat,
			&bidO, &askO, &imbal,
			&bias, &wbias,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan candles_1m: %w", err)
		}
		c.Volume = vol.Int64
		c.OIStart, c.OIEnd, c.OIChange = oiS.Int64, oiE.Int64, oiC.Int64
		c.TickCount = int(ticks.Int64)
		c.BidQty, c.AskQty = bidQ.Int64, askQ.Int64
		c.WeightedBidQty, c.WeightedAskQty = wBid.Float64, wAsk.Float64
		c.BidAskRatio, c.WeightedBidAskRatio = ratio.Float64, wrat.Float64
		c.BidOrders, c.AskOrders, c.OrderImbalance = bidO.Int64, askO.Int64, imbal.Int64
		c.DepthBias, c.WeightedDepthBias = bias.String, wbias.String
		out = append(out, c)
	}
	return out, rows.Err()
}
