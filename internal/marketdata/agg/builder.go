package agg

import (
	"context"
	"fmt"
	"time"

	"trading-analyticsv1/internal/model"
)

// Builder runs one incremental candle cycle at a time. It derives its resume
// point from the newest stored candle, so a restart or a repeated cycle never
// double-counts ticks.
type Builder struct {
	ticks   model.TickSource
	candles model.CandleSink
	loc     *time.Location

	// Tokens restricts aggregation to these instruments (empty = all).
	Tokens []int64

	// Metrics hooks (optional, set externally)
	OnMalformed func(n int)
	OnCandles   func(n int)
}

// NewBuilder creates a Builder. loc is the zone minute keys are expressed in.
func NewBuilder(ticks model.TickSource, candles model.CandleSink, loc *time.Location) *Builder {
	return &Builder{ticks: ticks, candles: candles, loc: loc}
}

// Window returns the tick range the next cycle would read: from the minute
// after the watermark (or the beginning when empty) up to, but excluding, the
// minute containing now.
func Window(watermark string, now time.Time, loc *time.Location) (model.TickQuery, error) {
	q := model.TickQuery{To: model.FormatMinute(now, loc)}
	if watermark != "" {
		from, err := model.NextMinute(watermark)
		if err != nil {
			return model.TickQuery{}, fmt.Errorf("agg: bad watermark: %w", err)
		}
		q.From = from
	}
	return q, nil
}

// RunCycle aggregates every complete minute newer than the watermark and
// writes the candles in one transaction. It returns the number of candles
// written. A tick read failure aborts the cycle before anything is written.
func (b *Builder) RunCycle(ctx context.Context, now time.Time) (int, error) {
	wm, err := b.candles.LastMinute(ctx)
	if err != nil {
		return 0, fmt.Errorf("agg: read watermark: %w", err)
	}

	q, err := Window(wm, now, b.loc)
	if err != nil {
		return 0, err
	}
	if q.From != "" && q.From >= q.To {
		return 0, nil
	}
	q.Tokens = b.Tokens

	ticks, err := b.ticks.ReadRange(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("agg: read ticks: %w", err)
	}
	if len(ticks) == 0 {
		return 0, nil
	}

	candles, stats := Aggregate(ticks)
	if stats.Malformed > 0 && b.OnMalformed != nil {
		b.OnMalformed(stats.Malformed)
	}
	if len(candles) == 0 {
		return 0, nil
	}

	if err := b.candles.UpsertCandles(ctx, candles); err != nil {
		return 0, fmt.Errorf("agg: write candles: %w", err)
	}
	if b.OnCandles != nil {
		b.OnCandles(len(candles))
	}
	return len(candles), nil
}
