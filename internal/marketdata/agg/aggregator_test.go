package agg

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"trading-analyticsv1/internal/model"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func rawTick(id int64, ts string, token int64, lp float64, vol int64, bidQty, askQty int64) model.Tick {
	return model.Tick{
		ID: id, TS: ts, Token: token, Symbol: "X",
		Raw: fmt.Sprintf(`{"lp":%v,"vol":%d,"bid":[{"price":1,"quantity":%d,"orders":1}],"ask":[{"price":1,"quantity":%d,"orders":1}]}`,
			lp, vol, bidQty, askQty),
	}
}

func TestAggregate_EndToEndScenario(t *testing.T) {
	ticks := []model.Tick{
		rawTick(1, "2024-01-01 09:15:10", 42, 100, 1000, 50, 40),
		rawTick(2, "2024-01-01 09:15:30", 42, 102, 1010, 60, 30),
		rawTick(3, "2024-01-01 09:15:50", 42, 101, 1025, 45, 50),
	}

	candles, stats := Aggregate(ticks)
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	if stats.Malformed != 0 {
		t.Fatalf("expected no malformed ticks, got %d", stats.Malformed)
	}

	c := candles[0]
	if c.Minute != "2024-01-01 09:15:00" {
		t.Errorf("expected minute 09:15:00, got %s", c.Minute)
	}
	if c.Open != 100 || c.High != 102 || c.Low != 100 || c.Close != 101 {
		t.Errorf("unexpected OHLC %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.BidQty != 45 || c.AskQty != 50 {
		t.Errorf("expected depth 45/50 from last tick, got %d/%d", c.BidQty, c.AskQty)
	}
	if c.BidAskRatio != 0.9 {
		t.Errorf("expected ratio 0.9, got %v", c.BidAskRatio)
	}
	if c.DepthBias != model.Neutral {
		t.Errorf("expected NEUTRAL, got %s", c.DepthBias)
	}
	if c.Volume != 25 {
		t.Errorf("expected volume 25, got %d", c.Volume)
	}
	if c.TickCount != 3 {
		t.Errorf("expected tick_count 3, got %d", c.TickCount)
	}
}

func TestAggregate_DepthFromLastTickOnly(t *testing.T) {
	ticks := []model.Tick{
		rawTick(1, "2024-01-01 09:16:01", 7, 10, 0, 100, 10),
		rawTick(2, "2024-01-01 09:16:02", 7, 10, 0, 150, 10),
		rawTick(3, "2024-01-01 09:16:03", 7, 10, 0, 120, 10),
	}
	candles, _ := Aggregate(ticks)
	if candles[0].BidQty != 120 {
		t.Fatalf("expected bid qty 120, got %d", candles[0].BidQty)
	}
}

func TestAggregate_VolumeResetUsesLast(t *testing.T) {
	ticks := []model.Tick{
		rawTick(1, "2024-01-01 09:16:01", 7, 10, 5000, 1, 1),
		rawTick(2, "2024-01-01 09:16:40", 7, 10, 300, 1, 1),
	}
	candles, _ := Aggregate(ticks)
	if candles[0].Volume != 300 {
		t.Fatalf("expected volume 300 after reset, got %d", candles[0].Volume)
	}
}

func TestAggregate_SkipsMalformed(t *testing.T) {
	ticks := []model.Tick{
		{ID: 1, TS: "2024-01-01 09:16:01", Token: 7, Raw: `{not json`},
		{ID: 2, TS: "2024-01-01 09:16:02", Token: 7, Raw: `{"oi":5}`},
		rawTick(3, "2024-01-01 09:16:03", 7, 10, 0, 1, 1),
	}
	candles, stats := Aggregate(ticks)
	if stats.Malformed != 2 {
		t.Fatalf("expected 2 malformed, got %d", stats.Malformed)
	}
	if len(candles) != 1 || candles[0].TickCount != 1 {
		t.Fatalf("expected one candle from the valid tick, got %+v", candles)
	}
}

func TestAggregate_GroupsByTokenAndMinute(t *testing.T) {
	ticks := []model.Tick{
		rawTick(1, "2024-01-01 09:16:59", 2, 10, 0, 1, 1),
		rawTick(2, "2024-01-01 09:16:10", 1, 10, 0, 1, 1),
		rawTick(3, "2024-01-01 09:17:00", 1, 11, 0, 1, 1),
	}
	candles, _ := Aggregate(ticks)
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	if candles[0].Token != 1 || candles[1].Token != 2 || candles[2].Minute != "2024-01-01 09:17:00" {
		t.Fatalf("unexpected ordering: %+v", candles)
	}
}

func TestAggregate_OIChange(t *testing.T) {
	ticks := []model.Tick{
		{ID: 1, TS: "2024-01-01 09:16:01", Token: 7, Raw: `{"lp":10,"oi":1000}`},
		{ID: 2, TS: "2024-01-01 09:16:20", Token: 7, Raw: `{"lp":11}`},
		{ID: 3, TS: "2024-01-01 09:16:40", Token: 7, Raw: `{"lp":12,"oi":1300}`},
	}
	candles, _ := Aggregate(ticks)
	c := candles[0]
	if c.OIStart != 1000 || c.OIEnd != 1300 || c.OIChange != 300 {
		t.Fatalf("unexpected OI %d/%d/%d", c.OIStart, c.OIEnd, c.OIChange)
	}
}

func TestApplyDepth_WeightsAndLevels(t *testing.T) {
	var c model.MinuteCandle
	bids := []model.DepthLevel{
		{Quantity: 100, Orders: 5},
		{Quantity: 100, Orders: 5},
		{Quantity: 100, Orders: 5},
		{Quantity: 100, Orders: 5},
		{Quantity: 100, Orders: 5},
		{Quantity: 1000, Orders: 50}, // beyond level 5, ignored
	}
	asks := []model.DepthLevel{{Quantity: 100, Orders: 2}}
	ApplyDepth(&c, bids, asks)

	if c.BidQty != 500 {
		t.Errorf("expected bid qty 500, got %d", c.BidQty)
	}
	if diff := c.WeightedBidQty - 300; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected weighted bid 300, got %v", c.WeightedBidQty)
	}
	if c.BidOrders != 25 || c.OrderImbalance != 23 {
		t.Errorf("unexpected orders %d imbalance %d", c.BidOrders, c.OrderImbalance)
	}
	if c.DepthBias != model.BuyerDominant || c.WeightedDepthBias != model.BuyerDominant {
		t.Errorf("expected BUYER_DOMINANT, got %s/%s", c.DepthBias, c.WeightedDepthBias)
	}
}

func TestRatioAndBias(t *testing.T) {
	tests := []struct {
		bid, ask float64
		ratio    float64
		bias     string
	}{
		{10, 0, 999, model.BuyerDominant},
		{0, 0, 1, model.Neutral},
		{70, 100, 0.7, model.SellerDominant},
		{120, 100, 1.2, model.Neutral},
		{80, 100, 0.8, model.Neutral},
	}
	for _, tt := range tests {
		r := Ratio(tt.bid, tt.ask)
		if r != tt.ratio {
			t.Errorf("Ratio(%v,%v) = %v, want %v", tt.bid, tt.ask, r, tt.ratio)
		}
		if b := Bias(r); b != tt.bias {
			t.Errorf("Bias(%v) = %s, want %s", r, b, tt.bias)
		}
	}
}

// ── Builder ──

type fakeTicks struct {
	ticks []model.Tick
	err   error
	last  model.TickQuery
}

func (f *fakeTicks) ReadRange(_ context.Context, q model.TickQuery) ([]model.Tick, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Tick
	for _, t := range f.ticks {
		if q.From != "" && t.TS < q.From {
			continue
		}
		if q.To != "" && t.TS >= q.To {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeCandles struct {
	rows   map[string]model.MinuteCandle
	writes int
}

func (f *fakeCandles) LastMinute(context.Context) (string, error) {
	max := ""
	for _, c := range f.rows {
		if c.Minute > max {
			max = c.Minute
		}
	}
	return max, nil
}

func (f *fakeCandles) UpsertCandles(_ context.Context, cs []model.MinuteCandle) error {
	f.writes++
	for _, c := range cs {
		f.rows[c.Key()] = c
	}
	return nil
}

func TestBuilder_ExcludesCurrentMinute(t *testing.T) {
	src := &fakeTicks{ticks: []model.Tick{
		rawTick(1, "2024-01-01 09:15:10", 1, 100, 0, 1, 1),
		rawTick(2, "2024-01-01 09:16:05", 1, 101, 0, 1, 1),
	}}
	sink := &fakeCandles{rows: map[string]model.MinuteCandle{}}
	b := NewBuilder(src, sink, ist)

	now := time.Date(2024, 1, 1, 9, 16, 30, 0, ist)
	n, err := b.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 candle, got %d", n)
	}
	if src.last.To != "2024-01-01 09:16:00" {
		t.Fatalf("expected upper bound at current minute, got %q", src.last.To)
	}

	// Next minute: watermark advances, 09:15 is not re-read.
	now = now.Add(time.Minute)
	n, err = b.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if n != 1 || src.last.From != "2024-01-01 09:16:00" {
		t.Fatalf("expected 09:16 only, got n=%d from=%q", n, src.last.From)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("expected 2 stored candles, got %d", len(sink.rows))
	}
}

func TestBuilder_IdempotentReplay(t *testing.T) {
	src := &fakeTicks{ticks: []model.Tick{
		rawTick(1, "2024-01-01 09:15:10", 1, 100, 0, 1, 1),
	}}
	sink := &fakeCandles{rows: map[string]model.MinuteCandle{}}
	b := NewBuilder(src, sink, ist)
	now := time.Date(2024, 1, 1, 9, 20, 0, 0, ist)

	if _, err := b.RunCycle(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	first := sink.rows["1@2024-01-01 09:15:00"]

	n, err := b.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || sink.writes != 1 {
		t.Fatalf("second cycle should write nothing, n=%d writes=%d", n, sink.writes)
	}
	if sink.rows["1@2024-01-01 09:15:00"] != first {
		t.Fatal("candle drifted on replay")
	}
}

func TestBuilder_SourceFailureWritesNothing(t *testing.T) {
	src := &fakeTicks{err: errors.New("db locked")}
	sink := &fakeCandles{rows: map[string]model.MinuteCandle{}}
	b := NewBuilder(src, sink, ist)

	_, err := b.RunCycle(context.Background(), time.Date(2024, 1, 1, 9, 20, 0, 0, ist))
	if err == nil {
		t.Fatal("expected error")
	}
	if sink.writes != 0 {
		t.Fatalf("expected no writes, got %d", sink.writes)
	}
}

func TestBuilder_MalformedHook(t *testing.T) {
	src := &fakeTicks{ticks: []model.Tick{
		{ID: 1, TS: "2024-01-01 09:15:10", Token: 1, Raw: `garbage`},
	}}
	sink := &fakeCandles{rows: map[string]model.MinuteCandle{}}
	b := NewBuilder(src, sink, ist)
	var malformed int
	b.OnMalformed = func(n int) { malformed += n }

	n, err := b.RunCycle(context.Background(), time.Date(2024, 1, 1, 9, 20, 0, 0, ist))
	if err != nil || n != 0 {
		t.Fatalf("unexpected n=%d err=%v", n, err)
	}
	if malformed != 1 {
		t.Fatalf("expected 1 malformed, got %d", malformed)
	}
}
