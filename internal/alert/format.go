package alert

import (
	"fmt"
	"strings"

	"trading-analyticsv1/internal/model"
	"trading-analyticsv1/internal/notification"
)

// Alert types recorded in the metadata.
const (
	TypeTrend    = "TREND_FOLLOW"
	TypeReversal = "REVERSAL"
	TypeRange    = "PREMIUM_SELL"
)

// AlertType classifies action relative to regime.
func AlertType(action, regime string) string {
	switch action {
	case model.ActionSellCEPremium, model.ActionSellPEPremium:
		return TypeRange
	case model.ActionBuyCE:
		if regime == model.RegimeTrendingDown {
			return TypeReversal
		}
	case model.ActionBuyPE:
		if regime == model.RegimeTrendingUp {
			return TypeReversal
		}
	}
	return TypeTrend
}

// Explain renders the one-line reasoning stored with an alert.
func Explain(in Inputs) string {
	return fmt.Sprintf("OI %s with %s depth; sector %s, index %s; %s regime, VIX %s",
		in.OICategory, in.DepthBias, in.SectorBias, in.IndexBias, in.Regime, in.VixState)
}

// Metadata builds the JSON metadata of a record.
func Metadata(in Inputs, action, grade string, confirmations []string) model.AlertMetadata {
	return model.AlertMetadata{
		AlertType:     AlertType(action, in.Regime),
		AlertQuality:  grade,
		Why:           Explain(in),
		Confirmations: confirmations,
	}
}

// actionText is the human label of an action.
func actionText(action string) string {
	switch action {
	case model.ActionBuyCE:
		return "BUY CALL"
	case model.ActionBuyPE:
		return "BUY PUT"
	case model.ActionSellCEPremium, model.ActionSellPEPremium:
		return "SELL PREMIUM"
	}
	return "WAIT"
}

// Notification formats a persisted record for delivery. A+ alerts are
// critical, everything else a warning.
func Notification(rec *model.AlertRecord) notification.Alert {
	level := notification.AlertWarning
	if rec.Metadata.AlertQuality == model.GradeAPlus {
		level = notification.AlertCritical
	}
	hhmm := rec.Minute
	if len(hhmm) >= 16 {
		hhmm = hhmm[11:16]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SIGNAL: %s (%s)\n", actionText(rec.Action), rec.Action)
	fmt.Fprintf(&b, "Confidence: %d%% grade %s\n", rec.Confidence, rec.Metadata.AlertQuality)
	fmt.Fprintf(&b, "OI: %s\nDepth: %s\nSector: %s\nIndex: %s\nMarket: %s\nRegime: %s\nVIX: %s\n",
		rec.OICategory, rec.DepthBias, rec.SectorBias, rec.IndexBias, rec.MarketBias, rec.Regime, rec.VixState)
	if len(rec.Metadata.Confirmations) > 0 {
		fmt.Fprintf(&b, "Confirmed by: %s", strings.Join(rec.Metadata.Confirmations, ", "))
	}

	return notification.Alert{
		Level:   level,
		Title:   rec.Symbol + " " + hhmm,
		Message: strings.TrimSpace(b.String()),
		Payload: rec.JSON(),
	}
}
