package model

// Sector groups member instruments for rollups.
type Sector struct {
	Name   string  `yaml:"name" json:"name" validate:"required"`
	Tokens []int64 `yaml:"tokens" json:"tokens" validate:"min=1,dive,gt=0"`
}

// MarketBlend names the index instruments blended into market direction.
// The stock component is the universe's Stocks list.
type MarketBlend struct {
	Nifty     int64 `yaml:"nifty" json:"nifty" default:"12602626" validate:"gt=0"`
	BankNifty int64 `yaml:"banknifty" json:"banknifty" default:"12601346" validate:"gt=0"`
	FinNifty  int64 `yaml:"finnifty" json:"finnifty" default:"12601602" validate:"gt=0"`
}

// Universe is the instrument configuration shared by every stage.
type Universe struct {
	Indices []Instrument `yaml:"indices" json:"indices" validate:"min=1,dive"`
	Stocks  []Instrument `yaml:"stocks" json:"stocks" validate:"dive"`
	NBFC    []Instrument `yaml:"nbfc" json:"nbfc" validate:"dive"`
	VIX     Instrument   `yaml:"vix" json:"vix"`

	// Futures maps an index symbol to the futures token whose OI category
	// it uses.
	Futures map[string]int64 `yaml:"futures" json:"futures" validate:"dive,gt=0"`

	// OIFutures is the OI classifier's allow-list.
	OIFutures []int64 `yaml:"oi_futures" json:"oi_futures" validate:"min=1,dive,gt=0"`

	// CandleTokens restricts candle aggregation; empty means all instruments.
	CandleTokens []int64 `yaml:"candle_tokens" json:"candle_tokens"`

	Sectors []Sector    `yaml:"sectors" json:"sectors" validate:"dive"`
	Market  MarketBlend `yaml:"market" json:"market"`

	// AlertSymbols are the instruments the alert engine evaluates.
	AlertSymbols []Instrument `yaml:"alert_symbols" json:"alert_symbols" validate:"min=1,dive"`

	Window1m int `yaml:"window_1m" json:"window_1m" default:"200" validate:"gte=20"`
	Window5m int `yaml:"window_5m" json:"window_5m" default:"100" validate:"gte=20"`
}

// Processing returns every instrument that gets an indicator row: indices,
// stocks and NBFCs, in that order. The VIX is excluded.
func (u *Universe) Processing() []Instrument {
	out := make([]Instrument, 0, len(u.Indices)+len(u.Stocks)+len(u.NBFC))
	out = append(out, u.Indices...)
	out = append(out, u.Stocks...)
	out = append(out, u.NBFC...)
	return out
}

// ProcessingSet returns Processing keyed by token.
func (u *Universe) ProcessingSet() map[int64]Instrument {
	set := make(map[int64]Instrument)
	for _, in := range u.Processing() {
		set[in.Token] = in
	}
	return set
}

// StockTokens returns the tokens of Stocks.
func (u *Universe) StockTokens() []int64 {
	out := make([]int64, len(u.Stocks))
	for i, s := range u.Stocks {
		out[i] = s.Token
	}
	return out
}

// FuturesFor returns the futures token whose OI category applies to symbol.
func (u *Universe) FuturesFor(symbol string) (int64, bool) {
	tok, ok := u.Futures[symbol]
	return tok, ok
}
