package indicator

// EMA calculates Exponential Moving Average, seeded with the SMA of the
// first period values.
// O(1) per update, no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next value.
func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (price-e.current)*e.multiplier + e.current
}

// Value returns the current EMA, or 0 before Ready.
func (e *EMA) Value() float64 { return e.current }

// Ready reports whether period values have been seen.
func (e *EMA) Ready() bool { return e.count >= e.period }

// Peek computes what Value() would be with an additional value without
// mutating state.
func (e *EMA) Peek(price float64) float64 {
	if e.count < e.period {
		return price
	}
	return (price-e.current)*e.multiplier + e.current
}

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// EMAOf returns the SMA-seeded EMA over prices, or 0 when fewer than period
// values exist.
func EMAOf(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	e := NewEMA(period)
	for _, p := range prices {
		e.Update(p)
	}
	return e.Value()
}

// MACD holds the MACD(12,26,9) triple.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD periods.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDOf computes MACD(12,26,9). The signal line is the SMA-seeded EMA(9)
// of the MACD series evaluated from the (slow+1)-th price on; it is 0 while
// fewer than 9 MACD values exist. Fewer than slow prices yields all zeros.
func MACDOf(prices []float64) MACD {
	if len(prices) < MACDSlow {
		return MACD{}
	}
	fast, slow := NewEMA(MACDFast), NewEMA(MACDSlow)
	sig := NewEMA(MACDSignal)
	var line float64
	var n int
	for i, p := range prices {
		fast.Update(p)
		slow.Update(p)
		line = fast.Value() - slow.Value()
		if i >= MACDSlow {
			sig.Update(line)
			n++
		}
	}
	m := MACD{Line: line}
	if n >= MACDSignal {
		m.Signal = sig.Value()
	}
	m.Histogram = m.Line - m.Signal
	return m
}

// Vote returns +1 when histogram and line-over-signal are both positive,
// -1 when both negative, else 0.
func (m MACD) Vote() int {
	switch {
	case m.Histogram > 0 && m.Line > m.Signal:
		return 1
	case m.Histogram < 0 && m.Line < m.Signal:
		return -1
	default:
		return 0
	}
}
