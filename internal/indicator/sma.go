package indicator

import "math"

// Window lengths of the trend and volume indicators.
const (
	SMAPeriod       = 20
	BollingerPeriod = 20
	BollingerWidth  = 2.0
	ATRPeriod       = 14
	ADXPeriod       = 14
	VWAPPeriod      = 20
	OBVPeriod       = 20
)

// SMA returns the mean of the last period values, or 0 when fewer exist.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// Bands holds Bollinger band levels.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger returns the bands over the last period prices using the
// population standard deviation. Zero bands on insufficient history.
func Bollinger(prices []float64, period int, width float64) Bands {
	if period <= 0 || len(prices) < period {
		return Bands{}
	}
	mid := SMA(prices, period)
	var variance float64
	for _, p := range prices[len(prices)-period:] {
		variance += (p - mid) * (p - mid)
	}
	std := math.Sqrt(variance / float64(period))
	return Bands{Upper: mid + width*std, Middle: mid, Lower: mid - width*std}
}

// Vote is bullish below the lower band and bearish above the upper band.
func (b Bands) Vote(price float64) int {
	switch {
	case price < b.Lower:
		return 1
	case price > b.Upper:
		return -1
	}
	return 0
}

// ATR returns the mean true range of the last period bars. Returns 0 with
// fewer than period+1 bars.
func ATR(bars []Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	var sum float64
	for i := len(bars) - period; i < len(bars); i++ {
		sum += trueRange(bars[i], bars[i-1])
	}
	return sum / float64(period)
}

// ADX returns a single directional-movement index (DX) computed over the
// first period+1 bars of the slice. Callers choose the slice; the regime
// detector passes its most recent 50 bars. Returns 0 with fewer than
// period+1 bars or a zero true range.
func ADX(bars []Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	var plusDM, minusDM, trSum float64
	for i := 1; i <= period; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM += up
		}
		if down > up && down > 0 {
			minusDM += down
		}
		trSum += trueRange(bars[i], bars[i-1])
	}
	if trSum == 0 {
		return 0
	}
	plusDI := 100 * plusDM / trSum
	minusDI := 100 * minusDM / trSum
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * abs(plusDI-minusDI) / (plusDI + minusDI)
}

// VWAP returns the volume-weighted typical price of bars. With zero total
// volume it falls back to the last close; an empty slice yields 0.
func VWAP(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var pv, vol float64
	for _, b := range bars {
		pv += typical(b) * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return bars[len(bars)-1].Close
	}
	return pv / vol
}

// OBV returns on-balance volume accumulated over bars (starting at 0).
func OBV(bars []Bar) float64 {
	var obv float64
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Volume
		}
	}
	return obv
}

// VolumeTrend votes with the 5-bar price direction when the last 5 bars'
// average volume exceeds 1.5x the 20-bar average. Needs 20 bars.
func VolumeTrend(bars []Bar) int {
	if len(bars) < 20 {
		return 0
	}
	var recent, base float64
	for _, b := range bars[len(bars)-5:] {
		recent += b.Volume
	}
	for _, b := range bars[len(bars)-20:] {
		base += b.Volume
	}
	recent /= 5
	base /= 20
	if recent <= base*VolumeSurge {
		return 0
	}
	cur := bars[len(bars)-1].Close
	past := bars[len(bars)-5].Close
	var change float64
	if past > 0 {
		change = (cur - past) / past
	}
	return sign(change > 0)
}
