// Package alert turns indicator rows into gated, graded trading alerts.
//
// A decision for one instrument and minute runs through four steps:
// context classification (OI, depth, sector, index, regime, VIX), a
// confidence score, an action mapping, and finally the in-memory gate
// (two-minute confirmation and cooldown) before it is persisted.
package alert

import "trading-analyticsv1/internal/model"

// Directional bias labels used for sector and index context.
const (
	Bullish = "BULLISH"
	Bearish = "BEARISH"
	Neutral = "NEUTRAL"
	Mixed   = "MIXED"
)

// IndexBiasPercent is the bullish/bearish share above which the index row
// counts as directional.
const IndexBiasPercent = 60.0

// Sector names consulted for the sector bias.
const (
	SectorBanking = "BANKING"
	SectorNBFC    = "NBFC"
)

// SectorBias combines the BANKING and NBFC rollup signals. Agreeing
// signals give their direction (or NEUTRAL); disagreeing signals are MIXED.
func SectorBias(banking, nbfc string) string {
	b, n := signalBias(banking), signalBias(nbfc)
	if b != n {
		return Mixed
	}
	return b
}

// IndexBias labels an index row from its bullish and bearish percentages.
func IndexBias(bullPct, bearPct float64) string {
	switch {
	case bullPct > IndexBiasPercent:
		return Bullish
	case bearPct > IndexBiasPercent:
		return Bearish
	}
	return Mixed
}

func signalBias(signal string) string {
	switch signal {
	case model.SignalBuy, model.SignalStrongBuy:
		return Bullish
	case model.SignalSell, model.SignalStrongSell:
		return Bearish
	}
	return Neutral
}

// direction of one context source: +1 bullish, -1 bearish, 0 neither.
func oiDirection(category string) int {
	switch {
	case model.IsBullishOI(category):
		return 1
	case model.IsBearishOI(category):
		return -1
	}
	return 0
}

func depthDirection(bias string) int {
	switch bias {
	case model.BuyerDominant:
		return 1
	case model.SellerDominant:
		return -1
	}
	return 0
}

func biasDirection(bias string) int {
	switch bias {
	case Bullish:
		return 1
	case Bearish:
		return -1
	}
	return 0
}

func isTrending(regime string) bool {
	return regime == model.RegimeTrendingUp || regime == model.RegimeTrendingDown
}
