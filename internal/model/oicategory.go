package model

// OI behaviour categories.
const (
	LongBuildup   = "LB"
	ShortBuildup  = "SB"
	ShortCovering = "SC"
	LongUnwinding = "LU"
	NoCategory    = "NA"
)

// OICategoryRow labels one futures minute bucket by the direction of price
// change against the direction of open interest change.
type OICategoryRow struct {
	Token       int64   `json:"instrument_token"`
	Minute      string  `json:"time_minute"`
	PriceStart  float64 `json:"price_start"`
	PriceEnd    float64 `json:"price_end"`
	OIStart     int64   `json:"oi_start"`
	OIEnd       int64   `json:"oi_end"`
	PriceChange float64 `json:"price_change"`
	OIChange    int64   `json:"oi_change"`
	Category    string  `json:"oi_category"`
}

// IsBullishOI reports whether category is LB or SC.
func IsBullishOI(category string) bool {
	return category == LongBuildup || category == ShortCovering
}

// IsBearishOI reports whether category is SB or LU.
func IsBearishOI(category string) bool {
	return category == ShortBuildup || category == LongUnwinding
}
