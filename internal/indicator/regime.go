package indicator

import "trading-analyticsv1/internal/model"

// Regime detection parameters.
const (
	RegimeMinBars   = 20
	RegimeLookback  = 50
	HighVolReturn   = 0.02
	LowVolReturn    = 0.005
	TrendDeadband   = 0.01
	DefaultRegimeCf = 0.5
)

// Regime is a market regime with its confidence in [0,1].
type Regime struct {
	Name       string
	Confidence float64
}

// Vote is +1 for TRENDING_UP, -1 for TRENDING_DOWN, else 0.
func (r Regime) Vote() int {
	switch r.Name {
	case model.RegimeTrendingUp:
		return 1
	case model.RegimeTrendingDown:
		return -1
	}
	return 0
}

// DetectRegime classifies the 5-minute history. With fewer than 20 bars it
// returns RANGING at 0.5.
func DetectRegime(bars5m []Bar) Regime {
	if len(bars5m) < RegimeMinBars {
		return Regime{model.RegimeRanging, DefaultRegimeCf}
	}
	recent := bars5m
	if len(recent) > RegimeLookback {
		recent = recent[len(recent)-RegimeLookback:]
	}

	adx := ADX(recent, ADXPeriod)

	var sum float64
	var n int
	for i := 1; i < len(recent); i++ {
		if prev := recent[i-1].Close; prev > 0 {
			sum += abs((recent[i].Close - prev) / prev)
			n++
		}
	}
	var vol float64
	if n > 0 {
		vol = sum / float64(n)
	}

	closes := Closes(recent)
	last := closes[len(closes)-1]
	sma := SMA(closes, SMAPeriod)
	var vsSMA float64
	if sma > 0 {
		vsSMA = (last - sma) / sma
	}

	switch {
	case vol > HighVolReturn:
		return Regime{model.RegimeHighVolatility, min(vol*50, 0.95)}
	case vol < LowVolReturn:
		return Regime{model.RegimeLowVolatility, 0.7}
	case adx > ADXTrendThreshold:
		switch {
		case vsSMA > TrendDeadband:
			return Regime{model.RegimeTrendingUp, min(adx/50, 0.95)}
		case vsSMA < -TrendDeadband:
			return Regime{model.RegimeTrendingDown, min(adx/50, 0.95)}
		}
		return Regime{model.RegimeRanging, 1 - adx/50}
	default:
		return Regime{model.RegimeRanging, 1 - adx/50}
	}
}

// DefaultVix is assumed until a VIX candle has been seen.
const DefaultVix = 15.0

// VixState buckets a VIX level.
func VixState(vix float64) string {
	switch {
	case vix < 12:
		return model.VixLow
	case vix < 15:
		return model.VixNormal
	case vix < 18:
		return model.VixHigh
	default:
		return model.VixExtreme
	}
}

// DepthBias labels book pressure from the bid/ask ratio and order
// imbalance: both must clear their threshold on the same side.
func DepthBias(ratio float64, imbalance int64) string {
	switch {
	case ratio >= DepthBuyRatio && imbalance >= DepthImbalanceMin:
		return model.BuyerDominant
	case ratio <= DepthSellRatio && imbalance <= -DepthImbalanceMin:
		return model.SellerDominant
	}
	return model.Neutral
}

// DepthVote maps DepthBias to +1/-1/0.
func DepthVote(ratio float64, imbalance int64) int {
	switch DepthBias(ratio, imbalance) {
	case model.BuyerDominant:
		return 1
	case model.SellerDominant:
		return -1
	}
	return 0
}

// OIVote maps an OI category to a vote: LB/SC bullish, SB/LU bearish.
func OIVote(category string) int {
	switch {
	case model.IsBullishOI(category):
		return 1
	case model.IsBearishOI(category):
		return -1
	}
	return 0
}
