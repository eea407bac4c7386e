package model

import "context"

// ── Storage Port Interfaces ──
// Each stage depends on these interfaces rather than on the SQLite/Redis
// implementations, so the cycle logic can be exercised with in-memory fakes.

// TickQuery selects ticks by instrument set and arrival-time range.
// From is inclusive, To exclusive; empty bounds are open.
type TickQuery struct {
	Tokens []int64
	From   string
	To     string
}

// TickSource is the read side of the append-only tick log.
type TickSource interface {
	// ReadRange returns matching ticks in ascending arrival order.
	ReadRange(ctx context.Context, q TickQuery) ([]Tick, error)
}

// CandleSink is the candle aggregator's output table.
type CandleSink interface {
	// LastMinute returns MAX(time_minute), or "" when the table is empty.
	LastMinute(ctx context.Context) (string, error)

	// UpsertCandles writes all candles in one transaction.
	UpsertCandles(ctx context.Context, candles []MinuteCandle) error
}

// CandleSource is the read side of the candle table used downstream.
type CandleSource interface {
	// MinutesAfter lists distinct minutes strictly after the given key, ascending.
	MinutesAfter(ctx context.Context, after string) ([]string, error)

	// CandlesAt returns every instrument's candle for one minute.
	CandlesAt(ctx context.Context, minute string) ([]MinuteCandle, error)

	// History returns up to limit candles for token with time_minute <= upTo,
	// oldest first.
	History(ctx context.Context, token int64, upTo string, limit int) ([]MinuteCandle, error)
}

// OISink is the OI classifier's output table.
type OISink interface {
	LastMinute(ctx context.Context, tokens []int64) (string, error)
	UpsertCategories(ctx context.Context, rows []OICategoryRow) error
}

// OILookup resolves the OI category of one futures bucket.
type OILookup interface {
	// Category returns NoCategory when no row exists.
	Category(ctx context.Context, token int64, minute string) (string, error)
}

// AnalyticsSink is the indicator engine's output.
type AnalyticsSink interface {
	LastMinute(ctx context.Context) (string, error)

	// WriteAnalytics commits rows, sector rollups and market direction of
	// every minute in one transaction.
	WriteAnalytics(ctx context.Context, batch []MinuteAnalytics) error
}

// AnalyticsSource is read by the alert engine.
type AnalyticsSource interface {
	LastMinute(ctx context.Context) (string, error)
	MinutesAfter(ctx context.Context, after string) ([]string, error)
	Row(ctx context.Context, token int64, minute string) (*IndicatorRow, error)
	Sectors(ctx context.Context, minute string) (map[string]SectorRollup, error)
	Market(ctx context.Context, minute string) (*MarketDirection, error)
}

// AlertStore persists alert decisions and the engine's watermark.
type AlertStore interface {
	Watermark(ctx context.Context) (string, error)
	SetWatermark(ctx context.Context, minute string) error
	Exists(ctx context.Context, symbol, minute string) (bool, error)
	Insert(ctx context.Context, rec *AlertRecord) (int64, error)
	MarkDelivered(ctx context.Context, id int64) error
}

// Publisher fans derived rows out to live subscribers. Implementations must
// not block the pipeline on failure.
type Publisher interface {
	PublishAnalytics(ctx context.Context, rows []IndicatorRow)
	PublishAlert(ctx context.Context, rec AlertRecord)
}
