package model

import (
	"encoding/json"
	"fmt"
)

// MaxDepthLevels is the number of order-book levels kept per side.
const MaxDepthLevels = 5

// Tick is one raw market data record as persisted by the ingestion collaborator.
// TS is already localised to IST by the producer ("2006-01-02 15:04:05").
type Tick struct {
	ID     int64  `json:"id"`
	TS     string `json:"ts_ist"`
	Token  int64  `json:"instrument_token"`
	Symbol string `json:"symbol"`
	Raw    string `json:"tick_json"`
}

// DepthLevel is a single price level of the order book.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int64   `json:"orders"`
}

// TickData is the decoded tick_json payload. Pointer fields distinguish an
// absent value from a zero one.
type TickData struct {
	LastPrice *float64     `json:"lp,omitempty"`
	OI        *int64       `json:"oi,omitempty"`
	Volume    *int64       `json:"vol,omitempty"`
	Bid       []DepthLevel `json:"bid,omitempty"`
	Ask       []DepthLevel `json:"ask,omitempty"`
}

// Decode parses the raw JSON payload of the tick.
func (t *Tick) Decode() (TickData, error) {
	var d TickData
	if err := json.Unmarshal([]byte(t.Raw), &d); err != nil {
		return TickData{}, fmt.Errorf("tick %d: decode payload: %w", t.ID, err)
	}
	return d, nil
}

// JSON returns the encoded payload (ignoring errors, the type has no
// unencodable fields).
func (d *TickData) JSON() string {
	b, _ := json.Marshal(d)
	return string(b)
}
