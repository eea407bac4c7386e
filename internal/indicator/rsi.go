package indicator

// Oscillator periods.
const (
	RSIPeriod   = 14
	StochPeriod = 14
	CCIPeriod   = 20
	MFIPeriod   = 14
	ROCPeriod   = 12
)

// RSI returns the relative strength index over the last period price
// changes using simple averages. Returns 50 with fewer than period+1 prices
// and 100 when there were no losses.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RSIVote: oversold is bullish, overbought bearish.
func RSIVote(rsi float64) int {
	switch {
	case rsi < RSIOversold:
		return 1
	case rsi > RSIOverbought:
		return -1
	}
	return 0
}

// Stochastic returns %K and %D over the last period bars. %D is not
// smoothed and equals %K. Both are 50 with too little history or a flat
// range.
func Stochastic(bars []Bar, period int) (k, d float64) {
	if period <= 0 || len(bars) < period {
		return 50, 50
	}
	recent := bars[len(bars)-period:]
	lo, hi := recent[0].Low, recent[0].High
	for _, b := range recent[1:] {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	if hi-lo == 0 {
		return 50, 50
	}
	k = 100 * (recent[len(recent)-1].Close - lo) / (hi - lo)
	return k, k
}

// StochVote is bullish below 20 with %K above %D and bearish above 80 with
// %K below %D.
func StochVote(k, d float64) int {
	switch {
	case k < StochOversold && k > d:
		return 1
	case k > StochOverbought && k < d:
		return -1
	}
	return 0
}

// CCI returns the commodity channel index over the last period bars, or 0.
func CCI(bars []Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	recent := bars[len(bars)-period:]
	var sum float64
	for _, b := range recent {
		sum += typical(b)
	}
	mean := sum / float64(period)

	var dev float64
	for _, b := range recent {
		dev += abs(typical(b) - mean)
	}
	dev /= float64(period)
	if dev == 0 {
		return 0
	}
	return (typical(recent[len(recent)-1]) - mean) / (0.015 * dev)
}

// CCIVote is bullish below -100 and bearish above 100.
func CCIVote(cci float64) int {
	switch {
	case cci < CCIOversold:
		return 1
	case cci > CCIOverbought:
		return -1
	}
	return 0
}

// MFI returns the money flow index over the last period bars. Returns 50
// with fewer than period+1 bars and 100 with no negative flow.
func MFI(bars []Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 50
	}
	var pos, neg float64
	for i := len(bars) - period; i < len(bars); i++ {
		tp, prev := typical(bars[i]), typical(bars[i-1])
		flow := tp * bars[i].Volume
		switch {
		case tp > prev:
			pos += flow
		case tp < prev:
			neg += flow
		}
	}
	if neg == 0 {
		return 100
	}
	return 100 - 100/(1+pos/neg)
}

// MFIVote is bullish below 20 and bearish above 80.
func MFIVote(mfi float64) int {
	switch {
	case mfi < MFIOversold:
		return 1
	case mfi > MFIOverbought:
		return -1
	}
	return 0
}

// ROC returns the percentage rate of change over period bars, or 0.
func ROC(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 0
	}
	cur := prices[len(prices)-1]
	past := prices[len(prices)-1-period]
	if past == 0 {
		return 0
	}
	return (cur - past) / past * 100
}
