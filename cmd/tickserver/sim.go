package main

import (
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"trading-analyticsv1/internal/marketdata/wssim"
	"trading-analyticsv1/internal/model"
)

var startPrices = map[string]float64{
	"BANKNIFTY":  48000,
	"NIFTY":      21750,
	"FINNIFTY":   21400,
	"INDIA_VIX":  13.5,
	"HDFCBANK":   1650,
	"ICICIBANK":  1000,
	"SBIN":       620,
	"KOTAKBANK":  1850,
	"AXISBANK":   1100,
	"INDUSINDBK": 1550,
	"RELIANCE":   2500,
	"BHARTIARTL": 1050,
	"TCS":        3700,
	"INFY":       1500,
}

// simInstrument is the random-walk state of one instrument.
type simInstrument struct {
	model.Instrument
	price  float64
	vol    int64
	oi     int64
	withOI bool
}

// simulator produces depth ticks for a fixed instrument set.
type simulator struct {
	rng         *rand.Rand
	instruments []*simInstrument
	loc         *time.Location
}

func newSimulator(u *model.Universe, loc *time.Location, seed int64) *simulator {
	futures := make(map[int64]bool, len(u.OIFutures))
	for _, tok := range u.OIFutures {
		futures[tok] = true
	}
	all := append(u.Processing(), u.VIX)

	s := &simulator{rng: rand.New(rand.NewSource(seed)), loc: loc}
	seen := make(map[int64]bool, len(all))
	for _, in := range all {
		if seen[in.Token] {
			continue
		}
		seen[in.Token] = true
		price, ok := startPrices[in.Symbol]
		if !ok {
			price = 1000
		}
		si := &simInstrument{Instrument: in, price: price, withOI: futures[in.Token]}
		if si.withOI {
			si.oi = 1_000_000
		}
		s.instruments = append(s.instruments, si)
	}
	return s
}

// next advances every instrument one step and returns the encoded messages.
func (s *simulator) next(now time.Time) [][]byte {
	ts := now.In(s.loc).Format(model.TickLayout)
	out := make([][]byte, 0, len(s.instruments))
	for _, in := range s.instruments {
		in.price = s.walk(in.price)
		in.vol += int64(s.rng.Intn(500) + 1)
		msg := wssim.Message{Token: in.Token, Symbol: in.Symbol, TS: ts}
		lp := in.price
		vol := in.vol
		msg.LastPrice = &lp
		msg.Volume = &vol
		if in.withOI {
			in.oi += int64(s.rng.Intn(2001) - 1000)
			if in.oi < 0 {
				in.oi = 0
			}
			oi := in.oi
			msg.OI = &oi
		}
		msg.Bid, msg.Ask = s.depth(in.price)
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}

// walk applies a random move of at most 0.1%.
func (s *simulator) walk(price float64) float64 {
	pct := (s.rng.Float64()*0.2 - 0.1) / 100.0
	p := math.Round(price*(1+pct)*100) / 100
	if p < 0.05 {
		p = 0.05
	}
	return p
}

func (s *simulator) depth(price float64) (bid, ask []model.DepthLevel) {
	tick := math.Max(0.05, math.Round(price*0.0002*100)/100)
	bid = make([]model.DepthLevel, model.MaxDepthLevels)
	ask = make([]model.DepthLevel, model.MaxDepthLevels)
	for i := 0; i < model.MaxDepthLevels; i++ {
		step := float64(i+1) * tick
		bid[i] = model.DepthLevel{Price: price - step, Quantity: int64(s.rng.Intn(900) + 25), Orders: int64(s.rng.Intn(20) + 1)}
		ask[i] = model.DepthLevel{Price: price + step, Quantity: int64(s.rng.Intn(900) + 25), Orders: int64(s.rng.Intn(20) + 1)}
	}
	return bid, ask
}
