package oicat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-analyticsv1/internal/model"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func oiTick(ts string, token int64, lp float64, oi int64) model.Tick {
	return model.Tick{TS: ts, Token: token, Raw: fmt.Sprintf(`{"lp":%v,"oi":%d}`, lp, oi)}
}

func TestCategorize_SignTable(t *testing.T) {
	tests := []struct {
		price float64
		oi    int64
		want  string
		ok    bool
	}{
		{5, 200, model.LongBuildup, true},
		{-5, 200, model.ShortBuildup, true},
		{5, -200, model.ShortCovering, true},
		{-5, -200, model.LongUnwinding, true},
		{0, 200, "", false},
		{0, -200, "", false},
		{5, 0, "", false},
		{0, 0, "", false},
	}
	for _, tt := range tests {
		got, ok := Categorize(tt.price, tt.oi)
		assert.Equal(t, tt.ok, ok, "price=%v oi=%v", tt.price, tt.oi)
		assert.Equal(t, tt.want, got, "price=%v oi=%v", tt.price, tt.oi)
	}
}

func TestClassify_FirstAndLastUsableTick(t *testing.T) {
	ticks := []model.Tick{
		oiTick("2024-01-01 09:16:01", 12601346, 100, 1000),
		{TS: "2024-01-01 09:16:10", Token: 12601346, Raw: `{"lp":200}`}, // no oi
		oiTick("2024-01-01 09:16:50", 12601346, 105, 1200),
	}
	rows, skipped := Classify(ticks)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, skipped)

	r := rows[0]
	assert.Equal(t, "2024-01-01 09:16:00", r.Minute)
	assert.Equal(t, 100.0, r.PriceStart)
	assert.Equal(t, 105.0, r.PriceEnd)
	assert.Equal(t, int64(200), r.OIChange)
	assert.Equal(t, model.LongBuildup, r.Category)
}

func TestClassify_SkipsThinAndFlatBuckets(t *testing.T) {
	ticks := []model.Tick{
		oiTick("2024-01-01 09:16:01", 1, 100, 1000), // single tick
		oiTick("2024-01-01 09:17:01", 1, 100, 1000),
		oiTick("2024-01-01 09:17:30", 1, 100, 1500), // zero price change
	}
	rows, skipped := Classify(ticks)
	assert.Empty(t, rows)
	assert.Equal(t, 2, skipped)
}

type fakeTicks struct {
	ticks []model.Tick
	last  model.TickQuery
}

func (f *fakeTicks) ReadRange(_ context.Context, q model.TickQuery) ([]model.Tick, error) {
	f.last = q
	var out []model.Tick
	allowed := map[int64]bool{}
	for _, tok := range q.Tokens {
		allowed[tok] = true
	}
	for _, t := range f.ticks {
		if len(allowed) > 0 && !allowed[t.Token] {
			continue
		}
		if (q.From != "" && t.TS < q.From) || (q.To != "" && t.TS >= q.To) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeSink struct {
	rows map[string]model.OICategoryRow
}

func (f *fakeSink) LastMinute(_ context.Context, _ []int64) (string, error) {
	max := ""
	for _, r := range f.rows {
		if r.Minute > max {
			max = r.Minute
		}
	}
	return max, nil
}

func (f *fakeSink) UpsertCategories(_ context.Context, rows []model.OICategoryRow) error {
	for _, r := range rows {
		f.rows[fmt.Sprintf("%d@%s", r.Token, r.Minute)] = r
	}
	return nil
}

func TestClassifier_RunCycleAllowListAndCurrentMinute(t *testing.T) {
	src := &fakeTicks{ticks: []model.Tick{
		oiTick("2024-01-01 09:16:01", 12601346, 100, 1000),
		oiTick("2024-01-01 09:16:40", 12601346, 99, 1100),
		oiTick("2024-01-01 09:16:01", 555, 100, 1000), // not allow-listed
		oiTick("2024-01-01 09:16:40", 555, 101, 1100),
		oiTick("2024-01-01 09:17:01", 12601346, 99, 1100), // current minute
		oiTick("2024-01-01 09:17:20", 12601346, 98, 1000),
	}}
	sink := &fakeSink{rows: map[string]model.OICategoryRow{}}
	c := NewClassifier(src, sink, []int64{12601346, 12602626}, ist)

	n, err := c.RunCycle(context.Background(), time.Date(2024, 1, 1, 9, 17, 30, 0, ist))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.ShortBuildup, sink.rows["12601346@2024-01-01 09:16:00"].Category)

	n, err = c.RunCycle(context.Background(), time.Date(2024, 1, 1, 9, 18, 5, 0, ist))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "2024-01-01 09:17:00", src.last.From)
	assert.Equal(t, model.LongUnwinding, sink.rows["12601346@2024-01-01 09:17:00"].Category)
}
