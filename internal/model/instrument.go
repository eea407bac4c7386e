package model

import "strconv"

// Instrument identifies a tradeable instrument by its broker token.
type Instrument struct {
	Token  int64  `yaml:"token" json:"token" validate:"required,gt=0"`
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
}

// Key returns "SYMBOL:token".
func (i *Instrument) Key() string {
	return i.Symbol + ":" + strconv.FormatInt(i.Token, 10)
}
