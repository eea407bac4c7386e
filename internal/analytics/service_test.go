package analytics

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-analyticsv1/internal/model"
)

const (
	tokBankNifty = 12601346
	tokNifty     = 12602626
	tokVix       = 264969
	tokStock     = 341249
)

func testUniverse() *model.Universe {
	return &model.Universe{
		Indices: []model.Instrument{
			{Token: tokBankNifty, Symbol: "BANKNIFTY"},
			{Token: tokNifty, Symbol: "NIFTY"},
		},
		Stocks:   []model.Instrument{{Token: tokStock, Symbol: "HDFCBANK"}},
		VIX:      model.Instrument{Token: tokVix, Symbol: "INDIA_VIX"},
		Futures:  map[string]int64{"BANKNIFTY": tokBankNifty},
		Sectors:  []model.Sector{{Name: "BANKING", Tokens: []int64{tokStock}}},
		Market:   model.MarketBlend{Nifty: tokNifty, BankNifty: tokBankNifty, FinNifty: 12601602},
		Window1m: 200,
		Window5m: 100,
	}
}

type fakeCandles struct {
	byMinute map[string][]model.MinuteCandle
	failAt   string
}

func newFakeCandles() *fakeCandles {
	return &fakeCandles{byMinute: make(map[string][]model.MinuteCandle)}
}

func (f *fakeCandles) add(cs ...model.MinuteCandle) {
	for _, c := range cs {
		f.byMinute[c.Minute] = append(f.byMinute[c.Minute], c)
	}
}

func (f *fakeCandles) MinutesAfter(_ context.Context, after string) ([]string, error) {
	var out []string
	for m := range f.byMinute {
		if m > after {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeCandles) CandlesAt(_ context.Context, minute string) ([]model.MinuteCandle, error) {
	if minute == f.failAt {
		return nil, errors.New("candle store down")
	}
	return f.byMinute[minute], nil
}

func (f *fakeCandles) History(_ context.Context, token int64, upTo string, limit int) ([]model.MinuteCandle, error) {
	minutes, _ := f.MinutesAfter(context.Background(), "")
	var out []model.MinuteCandle
	for _, m := range minutes {
		if m > upTo {
			break
		}
		for _, c := range f.byMinute[m] {
			if c.Token == token {
				out = append(out, c)
			}
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type oiCall struct {
	token  int64
	minute string
}

type fakeOI struct {
	calls    []oiCall
	category string
}

func (f *fakeOI) Category(_ context.Context, token int64, minute string) (string, error) {
	f.calls = append(f.calls, oiCall{token, minute})
	return f.category, nil
}

type fakeSink struct {
	last    string
	batches [][]model.MinuteAnalytics
	fail    bool
}

func (f *fakeSink) LastMinute(context.Context) (string, error) { return f.last, nil }

func (f *fakeSink) WriteAnalytics(_ context.Context, batch []model.MinuteAnalytics) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.batches = append(f.batches, batch)
	f.last = batch[len(batch)-1].Minute
	return nil
}

type fakePublisher struct {
	rows int
}

func (p *fakePublisher) PublishAnalytics(_ context.Context, rows []model.IndicatorRow) {
	p.rows += len(rows)
}

func (p *fakePublisher) PublishAlert(context.Context, model.AlertRecord) {}

func TestRunCycle_ComputesAndCommits(t *testing.T) {
	ctx := context.Background()
	candles := newFakeCandles()
	for i := 0; i < 2; i++ {
		candles.add(
			candle(i, tokBankNifty, 48000),
			candle(i, tokVix, 20),
			candle(i, 999, 1), // outside the universe
		)
	}
	oi := &fakeOI{category: model.LongBuildup}
	sink := &fakeSink{}
	pub := &fakePublisher{}

	svc := NewService(candles, oi, sink, testUniverse())
	svc.Publisher = pub
	var reported int
	svc.OnRows = func(n int) { reported = n }

	n, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, reported)
	assert.Equal(t, 2, pub.rows)

	require.Len(t, sink.batches, 1, "whole cycle commits once")
	batch := sink.batches[0]
	require.Len(t, batch, 2)
	for _, ma := range batch {
		require.Len(t, ma.Rows, 1)
		row := ma.Rows[0]
		assert.Equal(t, int64(tokBankNifty), row.Token)
		assert.Equal(t, 20.0, row.VixValue, "vix applied before rows of the same minute")
		assert.Equal(t, model.VixExtreme, row.VixState)
		assert.Equal(t, model.LongBuildup, row.OICategory)
		require.NotNil(t, ma.Market)
		assert.Empty(t, ma.Sectors, "no active banking members yet")
	}
	assert.Equal(t, []oiCall{{tokBankNifty, minuteKey(0)}, {tokBankNifty, minuteKey(1)}}, oi.calls)

	n, err = svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "watermark makes replay a no-op")
	assert.Len(t, sink.batches, 1)
}

func TestRunCycle_InstrumentWithoutFuturesGetsNA(t *testing.T) {
	candles := newFakeCandles()
	candles.add(candle(0, tokStock, 1500))
	oi := &fakeOI{category: model.ShortBuildup}
	sink := &fakeSink{}

	_, err := NewService(candles, oi, sink, testUniverse()).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, oi.calls)
	assert.Equal(t, model.NoCategory, sink.batches[0][0].Rows[0].OICategory)
}

func TestRunCycle_SourceFailureWritesNothing(t *testing.T) {
	candles := newFakeCandles()
	candles.add(candle(0, tokBankNifty, 100), candle(1, tokBankNifty, 101))
	candles.failAt = minuteKey(1)
	sink := &fakeSink{}

	svc := NewService(candles, &fakeOI{}, sink, testUniverse())
	_, err := svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.batches)
	assert.Equal(t, 0, svc.Engine().Instruments(), "state rolled back with the cycle")
}

func TestRunCycle_CommitFailureResetsAndReplays(t *testing.T) {
	ctx := context.Background()
	candles := newFakeCandles()
	for i := 0; i < 25; i++ {
		candles.add(candle(i, tokBankNifty, 100+float64(i)))
	}
	sink := &fakeSink{fail: true}
	svc := NewService(candles, &fakeOI{}, sink, testUniverse())

	_, err := svc.RunCycle(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, svc.Engine().Instruments())

	sink.fail = false
	n, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	fresh := &fakeSink{}
	_, err = NewService(candles, &fakeOI{}, fresh, testUniverse()).RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.batches[0], sink.batches[0], "replay after failure matches an uninterrupted run")
}

func TestWarmup_RestoresHistory(t *testing.T) {
	ctx := context.Background()
	candles := newFakeCandles()
	for i := 0; i < 30; i++ {
		candles.add(candle(i, tokBankNifty, 100+float64(i)), candle(i, tokVix, 11))
	}
	sink := &fakeSink{last: minuteKey(24)}

	svc := NewService(candles, &fakeOI{}, sink, testUniverse())
	require.NoError(t, svc.Warmup(ctx))
	assert.Equal(t, 25, svc.Engine().State(tokBankNifty).Appended())
	assert.Equal(t, 11.0, svc.Engine().Vix())

	n, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	row := sink.batches[0][0].Rows[0]
	assert.Equal(t, minuteKey(25), row.Minute)
	assert.Greater(t, row.TotalActive, 0, "warmed state yields a full row")
	assert.Equal(t, model.VixLow, row.VixState)
}

func TestWarmup_EmptyStore(t *testing.T) {
	svc := NewService(newFakeCandles(), &fakeOI{}, &fakeSink{}, testUniverse())
	require.NoError(t, svc.Warmup(context.Background()))
	assert.Equal(t, 0, svc.Engine().Instruments())
}
