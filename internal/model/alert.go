package model

import "encoding/json"

// Recommended actions.
const (
	ActionBuyCE         = "BUY_CE"
	ActionBuyPE         = "BUY_PE"
	ActionSellCEPremium = "SELL_CE_PREMIUM"
	ActionSellPEPremium = "SELL_PE_PREMIUM"
	ActionWait          = "WAIT"
)

// Quality grades.
const (
	GradeAPlus = "A+"
	GradeA     = "A"
	GradeB     = "B"
	GradeSkip  = "SKIP"
)

// AlertMetadata is stored as JSON in the alerts table.
type AlertMetadata struct {
	AlertType     string   `json:"alert_type"`
	AlertQuality  string   `json:"alert_quality"`
	Why           string   `json:"why"`
	Confirmations []string `json:"confirmations"`
}

// AlertRecord is one persisted alert decision.
type AlertRecord struct {
	ID           int64         `json:"id"`
	Minute       string        `json:"time"`
	Symbol       string        `json:"symbol"`
	OICategory   string        `json:"future_oi_category"`
	DepthBias    string        `json:"depth_bias"`
	IndexBias    string        `json:"index_bias"`
	SectorBias   string        `json:"sector_bias"`
	MarketBias   string        `json:"market_bias"`
	Regime       string        `json:"regime"`
	VixState     string        `json:"vix_state"`
	Confidence   int           `json:"confidence"`
	Action       string        `json:"recommended_action"`
	Metadata     AlertMetadata `json:"metadata"`
	TelegramSent bool          `json:"telegram_sent"`
}

// JSON returns the JSON-encoded record (ignoring errors).
func (a *AlertRecord) JSON() []byte {
	b, _ := json.Marshal(a)
	return b
}
