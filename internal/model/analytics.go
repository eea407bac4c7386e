package model

import "encoding/json"

// Market regimes.
const (
	RegimeTrendingUp     = "TRENDING_UP"
	RegimeTrendingDown   = "TRENDING_DOWN"
	RegimeRanging        = "RANGING"
	RegimeHighVolatility = "HIGH_VOLATILITY"
	RegimeLowVolatility  = "LOW_VOLATILITY"
)

// VIX states.
const (
	VixLow     = "LOW"
	VixNormal  = "NORMAL"
	VixHigh    = "HIGH"
	VixExtreme = "EXTREME"
)

// Signals holds the discrete vote (+1 bullish, -1 bearish, 0 neutral) of
// every indicator in the basket.
type Signals struct {
	EMA9        int `json:"ema_9_signal"`
	EMA21       int `json:"ema_21_signal"`
	EMA50       int `json:"ema_50_signal"`
	EMA200      int `json:"ema_200_signal"`
	MACD        int `json:"macd_signal"`
	ADXTrend    int `json:"adx_trend_signal"`
	Kalman      int `json:"kalman_signal"`
	RSI         int `json:"rsi_signal"`
	Stoch       int `json:"stoch_signal"`
	CCI         int `json:"cci_signal"`
	MFI         int `json:"mfi_signal"`
	ROC         int `json:"roc_signal"`
	BB          int `json:"bb_signal"`
	ATRTrend    int `json:"atr_trend_signal"`
	VWAP        int `json:"vwap_signal"`
	VolumeTrend int `json:"volume_trend_signal"`
	OBV         int `json:"obv_signal"`
	OI          int `json:"oi_signal"`
	Depth       int `json:"depth_signal"`
	Pattern     int `json:"pattern_signal"`
	Regime      int `json:"regime_signal"`
}

// SignalCount is the size of the indicator basket.
const SignalCount = 21

// List returns the signals in their fixed aggregation order.
func (s *Signals) List() [SignalCount]int {
	return [SignalCount]int{
		s.EMA9, s.EMA21, s.EMA50, s.EMA200, s.MACD, s.ADXTrend, s.Kalman,
		s.RSI, s.Stoch, s.CCI, s.MFI, s.ROC, s.BB, s.ATRTrend,
		s.VWAP, s.VolumeTrend, s.OBV, s.OI, s.Depth, s.Pattern, s.Regime,
	}
}

// Values holds the numeric output of each indicator.
type Values struct {
	EMA9          float64 `json:"ema_9_value"`
	EMA21         float64 `json:"ema_21_value"`
	EMA50         float64 `json:"ema_50_value"`
	EMA200        float64 `json:"ema_200_value"`
	MACD          float64 `json:"macd_value"`
	MACDSignal    float64 `json:"macd_signal_value"`
	MACDHistogram float64 `json:"macd_histogram"`
	RSI           float64 `json:"rsi_value"`
	StochK        float64 `json:"stoch_k"`
	StochD        float64 `json:"stoch_d"`
	CCI           float64 `json:"cci_value"`
	MFI           float64 `json:"mfi_value"`
	ROC           float64 `json:"roc_value"`
	BBUpper       float64 `json:"bb_upper"`
	BBMiddle      float64 `json:"bb_middle"`
	BBLower       float64 `json:"bb_lower"`
	ATR           float64 `json:"atr_value"`
	VWAP          float64 `json:"vwap_value"`
	OBV           float64 `json:"obv_value"`
	ADX           float64 `json:"adx_value"`
	Kalman        float64 `json:"kalman_value"`
}

// IndicatorRow is the per-minute feature vector of one instrument.
type IndicatorRow struct {
	Minute string `json:"time_minute"`
	Token  int64  `json:"instrument_token"`
	Symbol string `json:"symbol"`

	Open                float64 `json:"open"`
	High                float64 `json:"high"`
	Low                 float64 `json:"low"`
	Close               float64 `json:"close"`
	Volume              int64   `json:"volume"`
	BidQty              int64   `json:"bid_qty"`
	AskQty              int64   `json:"ask_qty"`
	BidAskRatio         float64 `json:"bid_ask_ratio"`
	WeightedBidAskRatio float64 `json:"weighted_bid_ask_ratio"`
	BidOrders           int64   `json:"bid_orders"`
	AskOrders           int64   `json:"ask_orders"`
	OrderImbalance      int64   `json:"order_imbalance"`
	OIChange            int64   `json:"oi_change"`
	OICategory          string  `json:"oi_category"`

	Signals Signals `json:"signals"`
	Values  Values  `json:"values"`

	BullishCount      int     `json:"bullish_count"`
	BearishCount      int     `json:"bearish_count"`
	NeutralCount      int     `json:"neutral_count"`
	TotalActive       int     `json:"total_active"`
	BullishPercentage float64 `json:"bullish_percentage"`
	BearishPercentage float64 `json:"bearish_percentage"`

	Regime           string  `json:"market_regime"`
	RegimeConfidence float64 `json:"regime_confidence"`
	VixValue         float64 `json:"vix_value"`
	VixState         string  `json:"vix_state"`
	Pattern          string  `json:"detected_pattern,omitempty"`
}

// JSON returns the JSON-encoded row (ignoring errors).
func (r *IndicatorRow) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// SectorRollup averages member instruments' percentages for one minute.
type SectorRollup struct {
	Minute         string  `json:"time_minute"`
	Sector         string  `json:"sector_name"`
	BuyPercentage  float64 `json:"buy_percentage"`
	SellPercentage float64 `json:"sell_percentage"`
	Signal         string  `json:"signal"`
	ActiveStocks   int     `json:"active_stocks"`
}

// Sector and market direction labels.
const (
	SignalBuy        = "BUY"
	SignalSell       = "SELL"
	SignalNeutral    = "NEUTRAL"
	SignalStrongBuy  = "STRONG_BUY"
	SignalStrongSell = "STRONG_SELL"
)

// MarketDirection is the weighted index + stock blend for one minute.
type MarketDirection struct {
	Minute        string  `json:"time_minute"`
	NiftyBuy      float64 `json:"nifty_buy"`
	NiftySell     float64 `json:"nifty_sell"`
	BankNiftyBuy  float64 `json:"banknifty_buy"`
	BankNiftySell float64 `json:"banknifty_sell"`
	Top10Buy      float64 `json:"top10_buy"`
	Top10Sell     float64 `json:"top10_sell"`
	FinNiftyBuy   float64 `json:"finnifty_buy"`
	FinNiftySell  float64 `json:"finnifty_sell"`
	OverallBuy    float64 `json:"overall_buy"`
	OverallSell   float64 `json:"overall_sell"`
	Direction     string  `json:"direction"`
}

// MinuteAnalytics bundles everything the indicator engine derives for one
// minute so it can be committed as a unit.
type MinuteAnalytics struct {
	Minute  string
	Rows    []IndicatorRow
	Sectors []SectorRollup
	Market  *MarketDirection
}
