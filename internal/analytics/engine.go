// Package analytics turns committed minute candles into per-instrument
// indicator rows, sector rollups and the market direction blend.
package analytics

import (
	"trading-analyticsv1/internal/indicator"
	"trading-analyticsv1/internal/model"
)

// MinHistory is the number of 1m bars below which Compute emits the
// default row.
const MinHistory = 20

// Minimum history of the individual indicators.
const (
	minEMAHistory   = 200
	minMACDHistory  = 35
	minADXHistory   = 20
	minOscHistory   = 15
	minROCHistory   = indicator.ROCPeriod + 1
	minATRHistory   = 15
	patternLookback = 3
)

// Engine owns the per-instrument state and the current VIX level. It is not
// safe for concurrent use; the service drives it from one goroutine.
type Engine struct {
	states map[int64]*State
	vix    float64
	cap1m  int
	cap5m  int
}

// NewEngine creates an engine whose instruments keep cap1m 1m bars and
// cap5m synthesised 5m bars.
func NewEngine(cap1m, cap5m int) *Engine {
	return &Engine{
		states: make(map[int64]*State),
		vix:    indicator.DefaultVix,
		cap1m:  cap1m,
		cap5m:  cap5m,
	}
}

// SetVix records the latest VIX close.
func (e *Engine) SetVix(v float64) { e.vix = v }

// Vix returns the current VIX level.
func (e *Engine) Vix() float64 { return e.vix }

// State returns the state of token, creating it on first use.
func (e *Engine) State(token int64) *State {
	st, ok := e.states[token]
	if !ok {
		st = NewState(e.cap1m, e.cap5m)
		e.states[token] = st
	}
	return st
}

// Instruments returns the number of instruments with state.
func (e *Engine) Instruments() int { return len(e.states) }

// Reset drops every instrument's state and restores the default VIX.
func (e *Engine) Reset() {
	e.states = make(map[int64]*State)
	e.vix = indicator.DefaultVix
}

// Compute appends c to its instrument's history and returns the indicator
// row for c's minute. With fewer than MinHistory bars the default row is
// returned and the Kalman filter is left untouched.
func (e *Engine) Compute(c model.MinuteCandle, oiCategory string) model.IndicatorRow {
	st := e.State(c.Token)
	st.Append(indicator.BarOf(&c))

	row := baseRow(&c, oiCategory, e.vix)
	bars := st.Bars1m()
	if len(bars) < MinHistory {
		return row
	}

	bars5m := st.Bars5m()
	prices := indicator.Closes(bars)
	price := c.Close
	sig := &row.Signals
	val := &row.Values

	if len(prices) >= minEMAHistory {
		for _, p := range []struct {
			period int
			value  *float64
			signal *int
		}{
			{9, &val.EMA9, &sig.EMA9},
			{21, &val.EMA21, &sig.EMA21},
			{50, &val.EMA50, &sig.EMA50},
			{200, &val.EMA200, &sig.EMA200},
		} {
			*p.value = indicator.EMAOf(prices, p.period)
			if *p.value > 0 {
				*p.signal = indicator.SignAbove(price, *p.value)
			}
		}
	}

	if len(prices) >= minMACDHistory {
		m := indicator.MACDOf(prices)
		val.MACD, val.MACDSignal, val.MACDHistogram = m.Line, m.Signal, m.Histogram
		sig.MACD = m.Vote()
	}

	if len(bars5m) >= minADXHistory {
		val.ADX = indicator.ADX(bars5m, indicator.ADXPeriod)
		if val.ADX > indicator.ADXTrendThreshold {
			sig.ADXTrend = indicator.SignAbove(price, indicator.SMA(prices, indicator.SMAPeriod))
		}
	}

	val.Kalman = st.kalman.Update(price)
	sig.Kalman = indicator.SignAbove(val.Kalman, price)

	if len(prices) >= indicator.RSIPeriod+1 {
		val.RSI = indicator.RSI(prices, indicator.RSIPeriod)
		sig.RSI = indicator.RSIVote(val.RSI)
	}

	if len(bars) >= minOscHistory {
		val.StochK, val.StochD = indicator.Stochastic(bars, indicator.StochPeriod)
		sig.Stoch = indicator.StochVote(val.StochK, val.StochD)
	}

	if len(bars) >= indicator.CCIPeriod {
		val.CCI = indicator.CCI(bars, indicator.CCIPeriod)
		sig.CCI = indicator.CCIVote(val.CCI)
	}

	if len(bars) >= minOscHistory {
		val.MFI = indicator.MFI(bars, indicator.MFIPeriod)
		sig.MFI = indicator.MFIVote(val.MFI)
	}

	if len(prices) >= minROCHistory {
		val.ROC = indicator.ROC(prices, indicator.ROCPeriod)
		sig.ROC = indicator.SignAbove(val.ROC, 0)
	}

	if len(prices) >= indicator.BollingerPeriod {
		bb := indicator.Bollinger(prices, indicator.BollingerPeriod, indicator.BollingerWidth)
		val.BBUpper, val.BBMiddle, val.BBLower = bb.Upper, bb.Middle, bb.Lower
		sig.BB = bb.Vote(price)
	}

	if len(bars5m) >= minATRHistory {
		val.ATR = indicator.ATR(bars5m, indicator.ATRPeriod)
		if price > 0 && val.ATR/price*100 > indicator.ATRTrendPercent {
			sig.ATRTrend = indicator.SignAbove(price, indicator.SMA(prices, indicator.SMAPeriod))
		}
	}

	recent := tail(bars, indicator.VWAPPeriod)
	val.VWAP = indicator.VWAP(recent)
	if val.VWAP > 0 {
		sig.VWAP = indicator.SignAbove(price, val.VWAP)
	}

	sig.VolumeTrend = indicator.VolumeTrend(bars)

	val.OBV = indicator.OBV(tail(bars, indicator.OBVPeriod))
	sig.OBV = indicator.SignAbove(val.OBV, 0)

	sig.OI = indicator.OIVote(oiCategory)
	sig.Depth = indicator.DepthVote(c.BidAskRatio, c.OrderImbalance)

	row.Pattern, sig.Pattern = indicator.DetectPattern(tail(bars, patternLookback))

	regime := indicator.DetectRegime(bars5m)
	row.Regime, row.RegimeConfidence = regime.Name, regime.Confidence
	sig.Regime = regime.Vote()

	Tally(&row)
	return row
}

// Tally fills the aggregate counts and percentages from row.Signals.
func Tally(row *model.IndicatorRow) {
	row.BullishCount, row.BearishCount, row.NeutralCount = 0, 0, 0
	for _, s := range row.Signals.List() {
		switch {
		case s > 0:
			row.BullishCount++
		case s < 0:
			row.BearishCount++
		default:
			row.NeutralCount++
		}
	}
	row.TotalActive = row.BullishCount + row.BearishCount
	row.BullishPercentage, row.BearishPercentage = 0, 0
	if row.TotalActive > 0 {
		row.BullishPercentage = float64(row.BullishCount) / float64(row.TotalActive) * 100
		row.BearishPercentage = float64(row.BearishCount) / float64(row.TotalActive) * 100
	}
}

// baseRow copies the candle fields and fills the neutral defaults.
func baseRow(c *model.MinuteCandle, oiCategory string, vix float64) model.IndicatorRow {
	if oiCategory == "" {
		oiCategory = model.NoCategory
	}
	row := model.IndicatorRow{
		Minute:              c.Minute,
		Token:               c.Token,
		Symbol:              c.Symbol,
		Open:                c.Open,
		High:                c.High,
		Low:                 c.Low,
		Close:               c.Close,
		Volume:              c.Volume,
		BidQty:              c.BidQty,
		AskQty:              c.AskQty,
		BidAskRatio:         c.BidAskRatio,
		WeightedBidAskRatio: c.WeightedBidAskRatio,
		BidOrders:           c.BidOrders,
		AskOrders:           c.AskOrders,
		OrderImbalance:      c.OrderImbalance,
		OIChange:            c.OIChange,
		OICategory:          oiCategory,
		Regime:              model.RegimeRanging,
		RegimeConfidence:    indicator.DefaultRegimeCf,
		VixValue:            vix,
		VixState:            indicator.VixState(vix),
	}
	row.Values.RSI = 50
	row.Values.StochK, row.Values.StochD = 50, 50
	row.Values.MFI = 50
	row.NeutralCount = model.SignalCount
	return row
}

func tail(bars []indicator.Bar, k int) []indicator.Bar {
	if len(bars) <= k {
		return bars
	}
	return bars[len(bars)-k:]
}
