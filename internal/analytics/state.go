package analytics

import (
	"trading-analyticsv1/internal/indicator"
	"trading-analyticsv1/internal/ringbuf"
)

// FoldEvery is the number of appended 1m bars folded into one 5m bar.
const FoldEvery = 5

// State is the rolling history of one instrument.
type State struct {
	bars1m   *ringbuf.Window[indicator.Bar]
	bars5m   *ringbuf.Window[indicator.Bar]
	kalman   *indicator.Kalman
	appended int
}

// NewState creates a state with the given window capacities.
func NewState(cap1m, cap5m int) *State {
	return &State{
		bars1m: ringbuf.New[indicator.Bar](cap1m),
		bars5m: ringbuf.New[indicator.Bar](cap5m),
		kalman: indicator.NewKalman(indicator.KalmanProcessVariance, indicator.KalmanMeasurementVariance),
	}
}

// Append pushes a 1m bar. Every FoldEvery appends, the last FoldEvery bars
// are folded into a 5m bar.
func (s *State) Append(b indicator.Bar) {
	s.bars1m.Push(b)
	s.appended++
	if s.appended%FoldEvery == 0 {
		s.bars5m.Push(indicator.Fold(s.bars1m.Tail(FoldEvery)))
	}
}

// Bars1m returns the 1m history, oldest first.
func (s *State) Bars1m() []indicator.Bar { return s.bars1m.Slice() }

// Bars5m returns the synthesised 5m history, oldest first.
func (s *State) Bars5m() []indicator.Bar { return s.bars5m.Slice() }

// Appended returns how many 1m bars were ever appended.
func (s *State) Appended() int { return s.appended }
