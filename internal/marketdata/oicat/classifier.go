// Package oicat labels futures minute buckets with an open-interest
// behaviour category (long build-up, short build-up, short covering, long
// unwinding) from the direction of price change against OI change.
package oicat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trading-analyticsv1/internal/marketdata/agg"
	"trading-analyticsv1/internal/model"
)

// Categorize maps a (price change, OI change) pair to a category. It returns
// false when either change is zero; such buckets carry no directional
// information and are not stored.
func Categorize(priceChange float64, oiChange int64) (string, bool) {
	switch {
	case priceChange > 0 && oiChange > 0:
		return model.LongBuildup, true
	case priceChange < 0 && oiChange > 0:
		return model.ShortBuildup, true
	case priceChange > 0 && oiChange < 0:
		return model.ShortCovering, true
	case priceChange < 0 && oiChange < 0:
		return model.LongUnwinding, true
	default:
		return "", false
	}
}

// point is a tick that carries both price and OI.
type point struct {
	ts    string
	price float64
	oi    int64
}

// Classify groups ticks into (token, minute) buckets and categorizes each
// bucket from its first and last usable tick. Buckets with fewer than two
// usable ticks or a zero change are skipped. Rows come back sorted by
// minute, then token.
func Classify(ticks []model.Tick) (rows []model.OICategoryRow, skipped int) {
	type key struct {
		token  int64
		minute string
	}
	buckets := make(map[key][]point)

	for i := range ticks {
		t := &ticks[i]
		data, err := t.Decode()
		if err != nil || data.LastPrice == nil || data.OI == nil {
			continue
		}
		minute, err := model.MinuteOf(t.TS)
		if err != nil {
			continue
		}
		k := key{t.Token, minute}
		buckets[k] = append(buckets[k], point{ts: t.TS, price: *data.LastPrice, oi: *data.OI})
	}

	for k, pts := range buckets {
		if len(pts) < 2 {
			skipped++
			continue
		}
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].ts < pts[j].ts })
		first, last := pts[0], pts[len(pts)-1]

		priceChange := last.price - first.price
		oiChange := last.oi - first.oi
		cat, ok := Categorize(priceChange, oiChange)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, model.OICategoryRow{
			Token:       k.token,
			Minute:      k.minute,
			PriceStart:  first.price,
			PriceEnd:    last.price,
			OIStart:     first.oi,
			OIEnd:       last.oi,
			PriceChange: priceChange,
			OIChange:    oiChange,
			Category:    cat,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Minute != rows[j].Minute {
			return rows[i].Minute < rows[j].Minute
		}
		return rows[i].Token < rows[j].Token
	})
	return rows, skipped
}

// Classifier runs one incremental classification cycle at a time over a
// fixed futures allow-list.
type Classifier struct {
	ticks  model.TickSource
	sink   model.OISink
	tokens []int64
	loc    *time.Location

	// Metrics hooks (optional, set externally)
	OnSkipped func(n int)
}

// NewClassifier creates a Classifier restricted to tokens.
func NewClassifier(ticks model.TickSource, sink model.OISink, tokens []int64, loc *time.Location) *Classifier {
	return &Classifier{ticks: ticks, sink: sink, tokens: tokens, loc: loc}
}

// RunCycle classifies every complete minute after the watermark and writes
// the rows in one transaction. It returns the number of rows written.
func (c *Classifier) RunCycle(ctx context.Context, now time.Time) (int, error) {
	if len(c.tokens) == 0 {
		return 0, nil
	}
	wm, err := c.sink.LastMinute(ctx, c.tokens)
	if err != nil {
		return 0, fmt.Errorf("oicat: read watermark: %w", err)
	}

	q, err := agg.Window(wm, now, c.loc)
	if err != nil {
		return 0, fmt.Errorf("oicat: %w", err)
	}
	if q.From != "" && q.From >= q.To {
		return 0, nil
	}
	q.Tokens = c.tokens

	ticks, err := c.ticks.ReadRange(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("oicat: read ticks: %w", err)
	}

	rows, skipped := Classify(ticks)
	if skipped > 0 && c.OnSkipped != nil {
		c.OnSkipped(skipped)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := c.sink.UpsertCategories(ctx, rows); err != nil {
		return 0, fmt.Errorf("oicat: write categories: %w", err)
	}
	return len(rows), nil
}
