package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trading-analyticsv1/internal/model"
)

const analyticsSchema = `
	CREATE TABLE IF NOT EXISTS minute_analytics (
		time_minute            TEXT    NOT NULL,
		instrument_token       INTEGER NOT NULL,
		symbol                 TEXT,
		open                   REAL,
		high                   REAL,
		low                    REAL,
		close                  REAL,
		volume                 INTEGER,
		bid_qty                INTEGER,
		ask_qty                INTEGER,
		bid_ask_ratio          REAL,
		weighted_bid_ask_ratio REAL,
		bid_orders             INTEGER,
		ask_orders             INTEGER,
		order_imbalance        INTEGER,
		oi_change              INTEGER,
		oi_category            TEXT,

		ema_9_signal           INTEGER,
		ema_21_signal          INTEGER,
		ema_50_signal          INTEGER,
		ema_200_signal         INTEGER,
		macd_signal            INTEGER,
		adx_trend_signal       INTEGER,
		kalman_signal          INTEGER,
		rsi_signal             INTEGER,
		stoch_signal           INTEGER,
		cci_signal             INTEGER,
		mfi_signal             INTEGER,
		roc_signal             INTEGER,
		bb_signal              INTEGER,
		atr_trend_signal       INTEGER,
		vwap_signal            INTEGER,
		volume_trend_signal    INTEGER,
		obv_signal             INTEGER,
		oi_signal              INTEGER,
		depth_signal           INTEGER,
		pattern_signal         INTEGER,
		regime_signal          INTEGER,

		ema_9_value            REAL,
		ema_21_value           REAL,
		ema_50_value           REAL,
		ema_200_value          REAL,
		macd_value             REAL,
		macd_signal_value      REAL,
		macd_histogram         REAL,
		rsi_value              REAL,
		stoch_k                REAL,
		stoch_d                REAL,
		cci_value              REAL,
		mfi_value              REAL,
		roc_value              REAL,
		bb_upper               REAL,
		bb_middle              REAL,
		bb_lower               REAL,
		atr_value              REAL,
		vwap_value             REAL,
		obv_value              REAL,
		adx_value              REAL,
		kalman_value           REAL,

		bullish_count          INTEGER,
		bearish_count          INTEGER,
		neutral_count          INTEGER,
		total_active           INTEGER,
		bullish_percentage     REAL,
		bearish_percentage     REAL,

		market_regime          TEXT,
		regime_confidence      REAL,
		vix_value              REAL,
		vix_state              TEXT,
		detected_pattern       TEXT,
		PRIMARY KEY (time_minute, instrument_token)
	);
	CREATE INDEX IF NOT EXISTS idx_analytics_token ON minute_analytics(instrument_token, time_minute);

	CREATE TABLE IF NOT EXISTS sector_analytics (
		time_minute     TEXT NOT NULL,
		sector_name     TEXT NOT NULL,
		buy_percentage  REAL,
		sell_percentage REAL,
		signal          TEXT,
		active_stocks   INTEGER,
		PRIMARY KEY (time_minute, sector_name)
	);

	CREATE TABLE IF NOT EXISTS market_direction (
		time_minute    TEXT PRIMARY KEY,
		nifty_buy      REAL,
		nifty_sell     REAL,
		banknifty_buy  REAL,
		banknifty_sell REAL,
		top10_buy      REAL,
		top10_sell     REAL,
		finnifty_buy   REAL,
		finnifty_sell  REAL,
		overall_buy    REAL,
		overall_sell   REAL,
		direction      TEXT
	);
`

var analyticsColumns = []string{
	"time_minute", "instrument_token", "symbol",
	"open", "high", "low", "close", "volume",
	"bid_qty", "ask_qty", "bid_ask_ratio", "weighted_bid_ask_ratio",
	"bid_orders", "ask_orders", "order_imbalance", "oi_change", "oi_category",

	"ema_9_signal", "ema_21_signal", "ema_50_signal", "ema_200_signal",
	"macd_signal", "adx_trend_signal", "kalman_signal", "rsi_signal",
	"stoch_signal", "cci_signal", "mfi_signal", "roc_signal", "bb_signal",
	"atr_trend_signal", "vwap_signal", "volume_trend_signal", "obv_signal",
	"oi_signal", "depth_signal", "pattern_signal", "regime_signal",

	"ema_9_value", "ema_21_value", "ema_50_value", "ema_200_value",
	"macd_value", "macd_signal_value", "macd_histogram", "rsi_value",
	"stoch_k", "stoch_d", "cci_value", "mfi_value", "roc_value",
	"bb_upper", "bb_middle", "bb_lower", "atr_value", "vwap_value",
	"obv_value", "adx_value", "kalman_value",

	"bullish_count", "bearish_count", "neutral_count", "total_active",
	"bullish_percentage", "bearish_percentage",

	"market_regime", "regime_confidence", "vix_value", "vix_state", "detected_pattern",
}

// rowFields returns pointers to every column of r in analyticsColumns order.
// The same list serves Exec (dereferenced by the driver) and Scan.
func rowFields(r *model.IndicatorRow) []any {
	s, v := &r.Signals, &r.Values
	return []any{
		&r.Minute, &r.Token, &r.Symbol,
		&r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
		&r.BidQty, &r.AskQty, &r.BidAskRatio, &r.WeightedBidAskRatio,
		&r.BidOrders, &r.AskOrders, &r.OrderImbalance, &r.OIChange, &r.OICategory,

		&s.EMA9, &s.EMA21, &s.EMA50, &s.EMA200,
		&s.MACD, &s.ADXTrend, &s.Kalman, &s.RSI,
		&s.Stoch, &s.CCI, &s.MFI, &s.ROC, &s.BB,
		&s.ATRTrend, &s.VWAP, &s.VolumeTrend, &s.OBV,
		&s.OI, &s.Depth, &s.Pattern, &s.Regime,

		&v.EMA9, &v.EMA21, &v.EMA50, &v.EMA200,
		&v.MACD, &v.MACDSignal, &v.MACDHistogram, &v.RSI,
		&v.StochK, &v.StochD, &v.CCI, &v.MFI, &v.ROC,
		&v.BBUpper, &v.BBMiddle, &v.BBLower, &v.ATR, &v.VWAP,
		&v.OBV, &v.ADX, &v.Kalman,

		&r.BullishCount, &r.BearishCount, &r.NeutralCount, &r.TotalActive,
		&r.BullishPercentage, &r.BearishPercentage,

		&r.Regime, &r.RegimeConfidence, &r.VixValue, &r.VixState, &r.Pattern,
	}
}

// rowValues dereferences rowFields for use as Exec arguments.
func rowValues(r *model.IndicatorRow) []any {
	ptrs := rowFields(r)
	vals := make([]any, len(ptrs))
	for i, p := range ptrs {
		switch p := p.(type) {
		case *string:
			vals[i] = *p
		case *int64:
			vals[i] = *p
		case *int:
			vals[i] = *p
		case *float64:
			vals[i] = *p
		default:
			vals[i] = p
		}
	}
	return vals
}

// AnalyticsStore holds indicator rows, sector rollups and market direction.
type AnalyticsStore struct {
	db *sql.DB
}

// NewAnalyticsStore opens (and if necessary creates) the analytics database.
func NewAnalyticsStore(path string) (*AnalyticsStore, error) {
	db, err := openWithSchema(path, "analytics", analyticsSchema)
	if err != nil {
		return nil, err
	}
	return &AnalyticsStore{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *AnalyticsStore) DB() *sql.DB { return s.db }

// LastMinute returns the newest analysed minute, or "".
func (s *AnalyticsStore) LastMinute(ctx context.Context) (string, error) {
	m, err := lastMinute(s.db.QueryRowContext(ctx, `SELECT MAX(time_minute) FROM minute_analytics`))
	if err != nil {
		return "", fmt.Errorf("sqlite analytics last minute: %w", err)
	}
	return m, nil
}

// WriteAnalytics commits every minute of batch in one transaction.
func (s *AnalyticsStore) WriteAnalytics(ctx context.Context, batch []model.MinuteAnalytics) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite analytics begin: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR REPLACE INTO minute_analytics (%s) VALUES (%s)",
		strings.Join(analyticsColumns, ", "), placeholders(len(analyticsColumns)),
	))
	if err != nil {
		rollback(tx)
		return fmt.Errorf("sqlite analytics prepare: %w", err)
	}
	defer rowStmt.Close()

	sectorStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sector_analytics
			(time_minute, sector_name, buy_percentage, sell_percentage, signal, active_stocks)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("sqlite sector prepare: %w", err)
	}
	defer sectorStmt.Close()

	for _, m := range batch {
		for i := range m.Rows {
			if _, err := rowStmt.ExecContext(ctx, rowValues(&m.Rows[i])...); err != nil {
				rollback(tx)
				return fmt.Errorf("sqlite analytics insert %s/%d: %w", m.Minute, m.Rows[i].Token, err)
			}
		}
		for _, sr := range m.Sectors {
			_, err := sectorStmt.ExecContext(ctx,
				sr.Minute, sr.Sector, sr.BuyPercentage, sr.SellPercentage, sr.Signal, sr.ActiveStocks)
			if err != nil {
				rollback(tx)
				return fmt.Errorf("sqlite sector insert %s/%s: %w", sr.Minute, sr.Sector, err)
			}
		}
		if md := m.Market; md != nil {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO market_direction (
					time_minute, nifty_buy, nifty_sell, banknifty_buy, banknifty_sell,
					top10_buy, top10_sell, finnifty_buy, finnifty_sell,
					overall_buy, overall_sell, direction
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, md.Minute, md.NiftyBuy, md.NiftySell, md.BankNiftyBuy, md.BankNiftySell,
				md.Top10Buy, md.Top10Sell, md.FinNiftyBuy, md.FinNiftySell,
				md.OverallBuy, md.OverallSell, md.Direction)
			if err != nil {
				rollback(tx)
				return fmt.Errorf("sqlite market direction insert %s: %w", md.Minute, err)
			}
		}
	}
	return tx.Commit()
}

// MinutesAfter lists analysed minutes strictly after after, ascending.
func (s *AnalyticsStore) MinutesAfter(ctx context.Context, after string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT time_minute FROM minute_analytics
		WHERE time_minute > ?
		ORDER BY time_minute ASC
	`, after)
	if err != nil {
		return nil, fmt.Errorf("sqlite query analytics minutes: %w", err)
	}
	defer rows.Close()

	var minutes []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("sqlite scan analytics minute: %w", err)
		}
		minutes = append(minutes, m)
	}
	return minutes, rows.Err()
}

// Row returns one instrument's row for minute, or nil when absent.
func (s *AnalyticsStore) Row(ctx context.Context, token int64, minute string) (*model.IndicatorRow, error) {
	var r model.IndicatorRow
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM minute_analytics WHERE instrument_token = ? AND time_minute = ?",
		nullSafeColumns(),
	), token, minute).Scan(rowFields(&r)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite analytics row %d@%s: %w", token, minute, err)
	}
	return &r, nil
}

// Sectors returns the rollups of minute keyed by sector name.
func (s *AnalyticsStore) Sectors(ctx context.Context, minute string) (map[string]model.SectorRollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time_minute, sector_name, buy_percentage, sell_percentage, signal, active_stocks
		FROM sector_analytics WHERE time_minute = ?
	`, minute)
	if err != nil {
		return nil, fmt.Errorf("sqlite query sectors %s: %w", minute, err)
	}
	defer rows.Close()

	out := make(map[string]model.SectorRollup)
	for rows.Next() {
		var sr model.SectorRollup
		if err := rows.Scan(&sr.Minute, &sr.Sector, &sr.BuyPercentage, &sr.SellPercentage, &sr.Signal, &sr.ActiveStocks); err != nil {
			return nil, fmt.Errorf("sqlite scan sector: %w", err)
		}
		out[sr.Sector] = sr
	}
	return out, rows.Err()
}

// Market returns the market direction of minute, or nil when absent.
func (s *AnalyticsStore) Market(ctx context.Context, minute string) (*model.MarketDirection, error) {
	var md model.MarketDirection
	err := s.db.QueryRowContext(ctx, `
		SELECT time_minute, nifty_buy, nifty_sell, banknifty_buy, banknifty_sell,
			top10_buy, top10_sell, finnifty_buy, finnifty_sell,
			overall_buy, overall_sell, direction
		FROM market_direction WHERE time_minute = ?
	`, minute).Scan(&md.Minute, &md.NiftyBuy, &md.NiftySell, &md.BankNiftyBuy, &md.BankNiftySell,
		&md.Top10Buy, &md.Top10Sell, &md.FinNiftyBuy, &md.FinNiftySell,
		&md.OverallBuy, &md.OverallSell, &md.Direction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite market direction %s: %w", minute, err)
	}
	return &md, nil
}

// Close closes the database.
func (s *AnalyticsStore) Close() error {
	return s.db.Close()
}

// nullSafeColumns wraps the text columns in COALESCE so rows written by
// older schema versions scan into plain strings.
func nullSafeColumns() string {
	cols := make([]string, len(analyticsColumns))
	for i, c := range analyticsColumns {
		switch c {
		case "symbol", "oi_category", "market_regime", "vix_state", "detected_pattern":
			cols[i] = "COALESCE(" + c + ", '')"
		default:
			cols[i] = "COALESCE(" + c + ", 0)"
		}
	}
	cols[0] = "time_minute"
	cols[1] = "instrument_token"
	return strings.Join(cols, ", ")
}
