package main

import (
	"testing"
	"time"

	"trading-analyticsv1/internal/marketdata/wssim"
	"trading-analyticsv1/internal/model"
)

func testUniverse() *model.Universe {
	return &model.Universe{
		Indices:   []model.Instrument{{Symbol: "NIFTY", Token: 12602626}},
		Stocks:    []model.Instrument{{Symbol: "TCS", Token: 2953217}},
		VIX:       model.Instrument{Symbol: "INDIA_VIX", Token: 264969},
		OIFutures: []int64{12602626},
	}
}

func TestSimulator_MessagesDecode(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	sim := newSimulator(testUniverse(), ist, 1)
	now := time.Date(2024, 1, 1, 3, 45, 10, 0, time.UTC)

	msgs := sim.next(now)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for _, raw := range msgs {
		tick, err := wssim.Decode(raw, now)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if tick.TS != "2024-01-01 09:15:10" {
			t.Errorf("ts = %q, want IST stamp", tick.TS)
		}
		d, err := tick.Decode()
		if err != nil {
			t.Fatal(err)
		}
		if d.LastPrice == nil || *d.LastPrice <= 0 {
			t.Errorf("%s: missing lp", tick.Symbol)
		}
		if len(d.Bid) != model.MaxDepthLevels || len(d.Ask) != model.MaxDepthLevels {
			t.Errorf("%s: depth %d/%d", tick.Symbol, len(d.Bid), len(d.Ask))
		}
		if d.Bid[0].Price >= d.Ask[0].Price {
			t.Errorf("%s: crossed book %v >= %v", tick.Symbol, d.Bid[0].Price, d.Ask[0].Price)
		}
		if (d.OI != nil) != (tick.Token == 12602626) {
			t.Errorf("%s: oi presence mismatch", tick.Symbol)
		}
	}
}

func TestSimulator_VolumeIsCumulative(t *testing.T) {
	sim := newSimulator(testUniverse(), time.UTC, 7)
	var last int64
	for i := 0; i < 5; i++ {
		sim.next(time.Now())
		v := sim.instruments[0].vol
		if v <= last {
			t.Fatalf("volume not increasing: %d after %d", v, last)
		}
		last = v
	}
}
