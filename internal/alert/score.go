package alert

import (
	"math"

	"trading-analyticsv1/internal/model"
)

// Inputs is the classified context of one instrument at one minute.
type Inputs struct {
	OICategory    string
	DepthBias     string
	WeightedRatio float64
	SectorBias    string
	IndexBias     string
	Regime        string
	VixState      string
}

// Score components.
const (
	pointsAgreement   = 40.0
	pointsPartial     = 20.0
	pointsSector      = 30.0
	pointsSectorFlat  = 15.0
	pointsIndex       = 20.0
	pointsIndexMixed  = 10.0
	pointsTrend       = 5.0
	pointsVixCalm     = 5.0
	pointsVixElevated = 2.0
)

// MinConfirmations is the number of independent confirmations an alert
// needs before an action is considered.
const MinConfirmations = 2

// Confirmation names, in evaluation order.
const (
	ConfirmOIDepth = "OI+Depth"
	ConfirmSector  = "Sector"
	ConfirmIndex   = "Index"
	ConfirmTrend   = "Trend"
)

// OIWeight scales the OI+Depth points by the strength of the OI category.
// Build-ups weigh more than covering or unwinding.
func OIWeight(category string) float64 {
	switch category {
	case model.ShortCovering, model.LongUnwinding:
		return 0.6
	}
	return 1.0
}

// DepthMultiplier bands the weighted bid/ask ratio. Both extremes of the
// book count as strong.
func DepthMultiplier(weightedRatio float64) float64 {
	switch {
	case weightedRatio > 2.0:
		return 1.2
	case weightedRatio >= 1.2:
		return 1.0
	case weightedRatio >= 0.8:
		return 0.8
	case weightedRatio >= 0.5:
		return 1.0
	}
	return 1.2
}

// RegimeScaling returns the multiplier and cap applied to a raw score.
// LOW_VOLATILITY and unknown regimes are scored as RANGING.
func RegimeScaling(regime string) (factor, limit float64) {
	switch regime {
	case model.RegimeTrendingUp, model.RegimeTrendingDown:
		return 1.0, 100
	case model.RegimeHighVolatility:
		return 0.7, 55
	}
	return 0.85, 65
}

// Confidence scores the context on 0..100.
func Confidence(in Inputs) int {
	oi, depth := oiDirection(in.OICategory), depthDirection(in.DepthBias)
	scale := OIWeight(in.OICategory) * DepthMultiplier(in.WeightedRatio)
	bull := oi > 0 || depth > 0
	bear := oi < 0 || depth < 0

	var score float64
	switch {
	case oi != 0 && oi == depth:
		score += pointsAgreement * scale
	case oi != 0 || depth != 0:
		score += pointsPartial * scale
	}

	switch {
	case aligned(in.SectorBias, bull, bear):
		score += pointsSector
	case in.SectorBias == Neutral:
		score += pointsSectorFlat
	}

	switch {
	case aligned(in.IndexBias, bull, bear):
		score += pointsIndex
	case in.IndexBias == Mixed:
		score += pointsIndexMixed
	}

	if (in.Regime == model.RegimeTrendingUp && bull) || (in.Regime == model.RegimeTrendingDown && bear) {
		score += pointsTrend
	}

	switch in.VixState {
	case model.VixLow, model.VixNormal:
		score += pointsVixCalm
	case model.VixHigh:
		score += pointsVixElevated
	}

	// OI and depth pointing opposite ways.
	if oi != 0 && depth != 0 && oi != depth {
		score /= 2
	}

	factor, limit := RegimeScaling(in.Regime)
	score = math.Min(score*factor, limit)
	return clamp(int(math.Round(score)), 0, 100)
}

// Confirmations lists the independent confirmations present in the
// context.
func Confirmations(in Inputs) []string {
	var out []string
	if oi := oiDirection(in.OICategory); oi != 0 && oi == depthDirection(in.DepthBias) {
		out = append(out, ConfirmOIDepth)
	}
	if biasDirection(in.SectorBias) != 0 {
		out = append(out, ConfirmSector)
	}
	if biasDirection(in.IndexBias) != 0 {
		out = append(out, ConfirmIndex)
	}
	if isTrending(in.Regime) {
		out = append(out, ConfirmTrend)
	}
	return out
}

// Votes counts bullish and bearish agreement among OI, depth, sector and
// index.
func Votes(in Inputs) (bull, bear int) {
	for _, d := range []int{
		oiDirection(in.OICategory),
		depthDirection(in.DepthBias),
		biasDirection(in.SectorBias),
		biasDirection(in.IndexBias),
	} {
		switch {
		case d > 0:
			bull++
		case d < 0:
			bear++
		}
	}
	return bull, bear
}

// DecideAction maps the context to a recommended action. High volatility
// and an extreme VIX never open positions. Ranging markets sell premium
// against the agreed side; trending markets buy with the trend, or against
// it when the opposite side has the agreement.
func DecideAction(in Inputs) string {
	if in.Regime == model.RegimeHighVolatility || in.VixState == model.VixExtreme {
		return model.ActionWait
	}
	bull, bear := Votes(in)

	switch in.Regime {
	case model.RegimeTrendingUp:
		switch {
		case bull >= 2:
			return model.ActionBuyCE
		case bear >= 2:
			return model.ActionBuyPE
		}
	case model.RegimeTrendingDown:
		switch {
		case bear >= 2:
			return model.ActionBuyPE
		case bull >= 2:
			return model.ActionBuyCE
		}
	default:
		switch {
		case bull >= 2 && bull > bear:
			return model.ActionSellPEPremium
		case bear >= 2 && bear > bull:
			return model.ActionSellCEPremium
		}
	}
	return model.ActionWait
}

// Grade buckets a confidence score.
func Grade(confidence int) string {
	switch {
	case confidence >= 80:
		return model.GradeAPlus
	case confidence >= 70:
		return model.GradeA
	case confidence >= 60:
		return model.GradeB
	}
	return model.GradeSkip
}

// Deliverable reports whether a grade is forwarded to notifiers.
func Deliverable(grade string) bool {
	return grade == model.GradeAPlus || grade == model.GradeA
}

func aligned(bias string, bull, bear bool) bool {
	return (bias == Bullish && bull) || (bias == Bearish && bear)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
