// Package agg folds stored ticks into one-minute candles carrying
// order-book depth metrics.
package agg

import (
	"sort"

	"trading-analyticsv1/internal/model"
)

// Depth bias thresholds on the bid/ask ratio.
const (
	BuyerThreshold  = 1.2
	SellerThreshold = 0.8

	// noAskRatio is reported when the ask side is empty but bids exist.
	noAskRatio = 999.0
)

// depthWeights discounts deeper levels; index 0 is the touch.
var depthWeights = [model.MaxDepthLevels]float64{1.0, 0.8, 0.6, 0.4, 0.2}

// Stats summarises one aggregation pass.
type Stats struct {
	Ticks     int // ticks read
	Malformed int // ticks skipped for bad JSON or a missing lp
	Candles   int // candles produced
}

// bucket holds the in-progress candle for one (instrument, minute).
type bucketKey struct {
	minute string
	token  int64
}

type bucket struct {
	candle    model.MinuteCandle
	firstVol  int64
	lastVol   int64
	firstOI   *int64
	lastOI    int64
	lastDepth model.TickData
}

// Aggregate groups ticks by (instrument, minute) in the order given, which
// must be arrival order. Candles come back sorted by minute, then token.
func Aggregate(ticks []model.Tick) ([]model.MinuteCandle, Stats) {
	stats := Stats{Ticks: len(ticks)}
	buckets := make(map[bucketKey]*bucket)

	for i := range ticks {
		t := &ticks[i]
		data, err := t.Decode()
		if err != nil || data.LastPrice == nil {
			stats.Malformed++
			continue
		}
		minute, err := model.MinuteOf(t.TS)
		if err != nil {
			stats.Malformed++
			continue
		}

		price := *data.LastPrice
		var vol int64
		if data.Volume != nil {
			vol = *data.Volume
		}

		key := bucketKey{minute: minute, token: t.Token}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				candle: model.MinuteCandle{
					Minute: minute,
					Token:  t.Token,
					Symbol: t.Symbol,
					Open:   price,
					High:   price,
					Low:    price,
					Close:  price,
				},
				firstVol: vol,
			}
			buckets[key] = b
		}

		c := &b.candle
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Close = price
		c.TickCount++
		if c.Symbol == "" {
			c.Symbol = t.Symbol
		}

		b.lastVol = vol
		if data.OI != nil {
			if b.firstOI == nil {
				oi := *data.OI
				b.firstOI = &oi
			}
			b.lastOI = *data.OI
		}
		b.lastDepth = data
	}

	candles := make([]model.MinuteCandle, 0, len(buckets))
	for _, b := range buckets {
		c := b.candle

		c.Volume = b.lastVol - b.firstVol
		if c.Volume < 0 {
			// Cumulative volume reset inside the minute.
			c.Volume = b.lastVol
		}
		if b.firstOI != nil {
			c.OIStart = *b.firstOI
			c.OIEnd = b.lastOI
			c.OIChange = c.OIEnd - c.OIStart
		}
		ApplyDepth(&c, b.lastDepth.Bid, b.lastDepth.Ask)
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		if candles[i].Minute != candles[j].Minute {
			return candles[i].Minute < candles[j].Minute
		}
		return candles[i].Token < candles[j].Token
	})
	stats.Candles = len(candles)
	return candles, stats
}

// ApplyDepth fills the depth fields of c from one order-book snapshot.
// Only the first MaxDepthLevels levels of each side count.
func ApplyDepth(c *model.MinuteCandle, bids, asks []model.DepthLevel) {
	c.BidQty, c.WeightedBidQty, c.BidOrders = sideTotals(bids)
	c.AskQty, c.WeightedAskQty, c.AskOrders = sideTotals(asks)

	c.BidAskRatio = Ratio(float64(c.BidQty), float64(c.AskQty))
	c.WeightedBidAskRatio = Ratio(c.WeightedBidQty, c.WeightedAskQty)
	c.DepthBias = Bias(c.BidAskRatio)
	c.WeightedDepthBias = Bias(c.WeightedBidAskRatio)
	c.OrderImbalance = c.BidOrders - c.AskOrders
}

func sideTotals(levels []model.DepthLevel) (qty int64, weighted float64, orders int64) {
	for i, lv := range levels {
		if i >= model.MaxDepthLevels {
			break
		}
		qty += lv.Quantity
		weighted += float64(lv.Quantity) * depthWeights[i]
		orders += lv.Orders
	}
	return qty, weighted, orders
}

// Ratio returns bid/ask. An empty ask side yields 999 when bids exist and
// 1 when both sides are empty.
func Ratio(bid, ask float64) float64 {
	if ask == 0 {
		if bid > 0 {
			return noAskRatio
		}
		return 1.0
	}
	return bid / ask
}

// Bias labels a bid/ask ratio.
func Bias(ratio float64) string {
	switch {
	case ratio > BuyerThreshold:
		return model.BuyerDominant
	case ratio < SellerThreshold:
		return model.SellerDominant
	default:
		return model.Neutral
	}
}
