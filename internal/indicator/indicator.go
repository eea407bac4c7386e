// Package indicator provides technical indicator calculations over rolling
// bar history.
//
// Every function is pure and total: on insufficient history, a zero price
// or a degenerate range it returns a documented neutral default (RSI 50,
// zero MACD, and so on) instead of failing, so one indicator can never
// abort the computation of a whole row.
package indicator

import "trading-analyticsv1/internal/model"

// Bar is one OHLCV bar of a rolling window.
type Bar struct {
	Minute string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// BarOf converts a stored candle to a Bar.
func BarOf(c *model.MinuteCandle) Bar {
	return Bar{
		Minute: c.Minute,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: float64(c.Volume),
	}
}

// Fold merges consecutive bars into one: open of the first, close of the
// last, extremes of high/low, summed volume. Minute is taken from the last.
func Fold(bars []Bar) Bar {
	if len(bars) == 0 {
		return Bar{}
	}
	out := Bar{
		Minute: bars[len(bars)-1].Minute,
		Open:   bars[0].Open,
		High:   bars[0].High,
		Low:    bars[0].Low,
		Close:  bars[len(bars)-1].Close,
	}
	for _, b := range bars {
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
		out.Volume += b.Volume
	}
	return out
}

// Closes extracts the close prices of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Signal thresholds.
const (
	ADXTrendThreshold = 25.0
	RSIOversold       = 30.0
	RSIOverbought     = 70.0
	StochOversold     = 20.0
	StochOverbought   = 80.0
	CCIOversold       = -100.0
	CCIOverbought     = 100.0
	MFIOversold       = 20.0
	MFIOverbought     = 80.0
	ATRTrendPercent   = 1.5
	VolumeSurge       = 1.5

	// Depth thresholds used by the indicator and alert engines. These are
	// independent of the candle aggregator's 1.2/0.8 bias labels.
	DepthBuyRatio     = 1.5
	DepthSellRatio    = 0.67
	DepthImbalanceMin = 100
)

// typical returns (high+low+close)/3.
func typical(b Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}

// trueRange of cur against the previous bar.
func trueRange(cur, prev Bar) float64 {
	tr := cur.High - cur.Low
	if d := abs(cur.High - prev.Close); d > tr {
		tr = d
	}
	if d := abs(cur.Low - prev.Close); d > tr {
		tr = d
	}
	return tr
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// sign returns +1 when cond holds, else -1.
func sign(cond bool) int {
	if cond {
		return 1
	}
	return -1
}

// SignAbove returns +1 when price > ref and -1 otherwise.
func SignAbove(price, ref float64) int {
	return sign(price > ref)
}
