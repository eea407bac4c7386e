package model

import (
	"encoding/json"
	"strconv"
)

// Depth bias labels.
const (
	BuyerDominant  = "BUYER_DOMINANT"
	SellerDominant = "SELLER_DOMINANT"
	Neutral        = "NEUTRAL"
)

// MinuteCandle is the one-minute aggregate for one instrument.
// Depth fields describe the last tick of the bucket, not a sum over ticks.
type MinuteCandle struct {
	Minute string `json:"time_minute"`
	Token  int64  `json:"instrument_token"`
	Symbol string `json:"symbol"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	Volume    int64 `json:"volume"`
	OIStart   int64 `json:"oi_start"`
	OIEnd     int64 `json:"oi_end"`
	OIChange  int64 `json:"oi_change"`
	TickCount int   `json:"tick_count"`

	BidQty         int64   `json:"bid_qty"`
	AskQty         int64   `json:"ask_qty"`
	WeightedBidQty float64 `json:"weighted_bid_qty"`
	WeightedAskQty float64 `json:"weighted_ask_qty"`

	BidAskRatio         float64 `json:"bid_ask_ratio"`
	WeightedBidAskRatio float64 `json:"weighted_bid_ask_ratio"`

	BidOrders      int64 `json:"bid_orders"`
	AskOrders      int64 `json:"ask_orders"`
	OrderImbalance int64 `json:"order_imbalance"`

	DepthBias         string `json:"depth_bias"`
	WeightedDepthBias string `json:"weighted_depth_bias"`
}

// Key returns "token@minute".
func (c *MinuteCandle) Key() string {
	return strconv.FormatInt(c.Token, 10) + "@" + c.Minute
}

// JSON returns the JSON-encoded candle (ignoring errors).
func (c *MinuteCandle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
