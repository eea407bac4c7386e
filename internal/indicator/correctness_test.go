package indicator

import (
	"math"
	"testing"

	"trading-analyticsv1/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func bar(open, high, low, close, vol float64) Bar {
	return Bar{Open: open, High: high, Low: low, Close: close, Volume: vol}
}

// flatBars returns n bars around price with a fixed +-1 range.
func flatBars(n int, price, vol float64) []Bar {
	out := make([]Bar, n)
	for i := range out {
		out[i] = bar(price, price+1, price-1, price, vol)
	}
	return out
}

// risingBars returns n bars whose close grows by pct per bar.
func risingBars(n int, start, pct float64) []Bar {
	out := make([]Bar, n)
	prev := start
	for i := range out {
		c := prev * (1 + pct)
		out[i] = bar(prev, c*1.002, prev*0.998, c, 1000)
		prev = c
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// EMA / MACD
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// Prices: 10, 11, 12, 13, 14
	// Seed after 3: (10+11+12)/3 = 11
	// Multiplier = 2/(3+1) = 0.5
	// After 13: (13-11)*0.5+11 = 12
	// After 14: (14-12)*0.5+12 = 13
	e := NewEMA(3)
	prices := []float64{10, 11, 12, 13, 14}
	expected := []float64{0, 0, 11, 12, 13}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		e.Update(p)
		if e.Ready() != ready[i] {
			t.Errorf("price %d: Ready()=%v, want %v", i, e.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", e.Value(), expected[i], 1e-9)
		}
	}
}

func TestEMA_Peek_DoesNotMutate(t *testing.T) {
	e := NewEMA(3)
	for _, p := range []float64{10, 11, 12} {
		e.Update(p)
	}
	before := e.Value()
	peek := e.Peek(13)
	if e.Value() != before {
		t.Fatalf("Peek mutated state: %v -> %v", before, e.Value())
	}
	assertClose(t, "peek", peek, 12, 1e-9)
}

func TestEMAOf_InsufficientIsZero(t *testing.T) {
	if v := EMAOf([]float64{1, 2, 3}, 9); v != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
}

// macdReference recomputes the MACD series from scratch at each step.
func macdReference(prices []float64) MACD {
	line := EMAOf(prices, MACDFast) - EMAOf(prices, MACDSlow)
	var series []float64
	for i := MACDSlow; i < len(prices); i++ {
		sub := prices[:i+1]
		series = append(series, EMAOf(sub, MACDFast)-EMAOf(sub, MACDSlow))
	}
	var sig float64
	if len(series) >= MACDSignal {
		sig = EMAOf(series, MACDSignal)
	}
	return MACD{Line: line, Signal: sig, Histogram: line - sig}
}

func TestMACD_MatchesReference(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i) + 3*math.Sin(float64(i)/3)
	}
	got := MACDOf(prices)
	want := macdReference(prices)
	assertClose(t, "macd line", got.Line, want.Line, 1e-9)
	assertClose(t, "macd signal", got.Signal, want.Signal, 1e-9)
	assertClose(t, "macd histogram", got.Histogram, want.Histogram, 1e-9)
}

func TestMACD_ShortHistory(t *testing.T) {
	if m := MACDOf(make([]float64, 25)); m != (MACD{}) {
		t.Fatalf("expected zero MACD, got %+v", m)
	}

	// 34 prices give 8 MACD values: signal not yet available.
	prices := make([]float64, 34)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	m := MACDOf(prices)
	if m.Signal != 0 {
		t.Fatalf("expected zero signal with 8 MACD values, got %v", m.Signal)
	}
	assertClose(t, "histogram", m.Histogram, m.Line, 1e-12)
}

func TestMACD_Vote(t *testing.T) {
	if (MACD{Line: 2, Signal: 1, Histogram: 1}).Vote() != 1 {
		t.Error("expected bullish")
	}
	if (MACD{Line: -2, Signal: -1, Histogram: -1}).Vote() != -1 {
		t.Error("expected bearish")
	}
	if (MACD{}).Vote() != 0 {
		t.Error("expected neutral")
	}
}

// ────────────────────────────────────────────────────────────
// Oscillators
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness(t *testing.T) {
	// 14 changes alternating +2 / -1 → avgGain=1, avgLoss=0.5, RS=2
	// RSI = 100 - 100/3 = 66.6667
	prices := []float64{100}
	for i := 0; i < 14; i++ {
		step := 2.0
		if i%2 == 1 {
			step = -1
		}
		prices = append(prices, prices[len(prices)-1]+step)
	}
	assertClose(t, "RSI", RSI(prices, 14), 66.666667, 1e-4)
}

func TestRSI_Edges(t *testing.T) {
	up := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	assertClose(t, "all up", RSI(up, 14), 100, 1e-9)
	assertClose(t, "all down", RSI(down, 14), 0, 1e-9)
	assertClose(t, "short", RSI(up[:14], 14), 50, 1e-9)

	if RSIVote(25) != 1 || RSIVote(75) != -1 || RSIVote(50) != 0 {
		t.Error("unexpected RSI votes")
	}
}

func TestStochastic(t *testing.T) {
	bars := flatBars(14, 100, 0)
	k, d := Stochastic(bars, 14)
	// Range 99..101, close 100 → K = 50
	assertClose(t, "K", k, 50, 1e-9)
	assertClose(t, "D", d, k, 0)

	bars[13] = bar(100, 101, 99, 101, 0)
	k, _ = Stochastic(bars, 14)
	assertClose(t, "K at high", k, 100, 1e-9)

	noRange := make([]Bar, 14)
	for i := range noRange {
		noRange[i] = bar(5, 5, 5, 5, 0)
	}
	k, d = Stochastic(noRange, 14)
	if k != 50 || d != 50 {
		t.Fatalf("flat range should be 50/50, got %v/%v", k, d)
	}
	// %D equals %K so the vote never fires.
	if StochVote(10, 10) != 0 {
		t.Error("expected neutral stoch vote")
	}
}

func TestCCI(t *testing.T) {
	if v := CCI(flatBars(20, 100, 0), 20); v != 0 {
		t.Fatalf("flat CCI should be 0, got %v", v)
	}
	bars := flatBars(19, 100, 0)
	bars = append(bars, bar(100, 111, 109, 110, 0))
	// Typical prices: 19×100, one 110. Mean 100.5.
	// Mean deviation: (19×0.5 + 9.5)/20 = 0.95
	// CCI = (110-100.5)/(0.015×0.95) = 666.67
	assertClose(t, "CCI", CCI(bars, 20), 666.666667, 1e-3)
	if CCIVote(666) != -1 || CCIVote(-150) != 1 {
		t.Error("unexpected CCI votes")
	}
}

func TestMFI(t *testing.T) {
	rising := risingBars(20, 100, 0.01)
	assertClose(t, "MFI rising", MFI(rising, 14), 100, 1e-9)
	assertClose(t, "MFI short", MFI(rising[:14], 14), 50, 1e-9)
}

func TestROC(t *testing.T) {
	prices := make([]float64, 13)
	for i := range prices {
		prices[i] = 100
	}
	prices[12] = 110
	assertClose(t, "ROC", ROC(prices, 12), 10, 1e-9)
	assertClose(t, "ROC short", ROC(prices[:12], 12), 0, 0)
}

// ────────────────────────────────────────────────────────────
// Bands / trend / volume
// ────────────────────────────────────────────────────────────

func TestBollinger_PopulationStd(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 1
		if i%2 == 0 {
			prices[i] = 3
		}
	}
	b := Bollinger(prices, 20, 2)
	assertClose(t, "middle", b.Middle, 2, 1e-9)
	assertClose(t, "upper", b.Upper, 4, 1e-9)
	assertClose(t, "lower", b.Lower, 0, 1e-9)
	if b.Vote(-1) != 1 || b.Vote(5) != -1 || b.Vote(2) != 0 {
		t.Error("unexpected band votes")
	}
}

func TestATR(t *testing.T) {
	assertClose(t, "ATR flat", ATR(flatBars(15, 100, 0), 14), 2, 1e-9)
	assertClose(t, "ATR short", ATR(flatBars(14, 100, 0), 14), 0, 0)
}

func TestADX_OneSidedMoveIs100(t *testing.T) {
	bars := make([]Bar, 15)
	for i := range bars {
		p := float64(100 + i)
		bars[i] = bar(p, p+1, p-1, p, 0)
	}
	assertClose(t, "ADX", ADX(bars, 14), 100, 1e-9)
	assertClose(t, "ADX flat", ADX(flatBars(15, 100, 0), 14), 0, 1e-9)
	assertClose(t, "ADX short", ADX(bars[:14], 14), 0, 0)
}

func TestVWAP(t *testing.T) {
	bars := []Bar{
		bar(0, 12, 9, 9, 100),   // typical 10
		bar(0, 22, 19, 19, 300), // typical 20
	}
	assertClose(t, "VWAP", VWAP(bars), 17.5, 1e-9)

	zero := []Bar{bar(0, 0, 0, 42, 0)}
	assertClose(t, "VWAP zero vol", VWAP(zero), 42, 0)
}

func TestOBV(t *testing.T) {
	bars := []Bar{
		bar(0, 0, 0, 10, 100),
		bar(0, 0, 0, 11, 50),
		bar(0, 0, 0, 10, 20),
		bar(0, 0, 0, 10, 999),
	}
	assertClose(t, "OBV", OBV(bars), 30, 0)
}

func TestVolumeTrend(t *testing.T) {
	bars := flatBars(20, 100, 100)
	if VolumeTrend(bars) != 0 {
		t.Fatal("no surge should be neutral")
	}
	for i := 15; i < 20; i++ {
		bars[i].Volume = 1000
		bars[i].Close = 100 + float64(i)
	}
	if v := VolumeTrend(bars); v != 1 {
		t.Fatalf("expected bullish surge, got %d", v)
	}
}

// ────────────────────────────────────────────────────────────
// Kalman / patterns / regime
// ────────────────────────────────────────────────────────────

func TestKalman_FirstStepAndConvergence(t *testing.T) {
	k := NewKalman(KalmanProcessVariance, KalmanMeasurementVariance)
	// gain = 1.00001/1.10001
	first := k.Update(100)
	assertClose(t, "first", first, 100*1.00001/1.10001, 1e-9)

	for i := 0; i < 200; i++ {
		k.Update(100)
	}
	assertClose(t, "converged", k.Estimate(), 100, 0.5)

	k.Reset()
	if k.Estimate() != 0 {
		t.Fatal("reset should zero the estimate")
	}
}

func TestDetectPattern(t *testing.T) {
	tests := []struct {
		name string
		bars []Bar
		want string
		vote int
	}{
		{"bullish engulfing", []Bar{
			bar(100, 101, 99, 100, 0),
			bar(105, 106, 99, 100, 0),
			bar(99, 107, 98, 106, 0),
		}, PatternBullishEngulfing, 1},
		{"bearish engulfing", []Bar{
			bar(100, 101, 99, 100, 0),
			bar(100, 106, 99, 105, 0),
			bar(106, 107, 98, 99, 0),
		}, PatternBearishEngulfing, -1},
		{"three white soldiers", []Bar{
			bar(100, 102, 99, 101, 0),
			bar(101, 103, 100, 102, 0),
			bar(102, 104, 101, 103, 0),
		}, PatternThreeWhiteSoldiers, 1},
		{"three black crows", []Bar{
			bar(103, 104, 101, 102, 0),
			bar(102, 103, 100, 101, 0),
			bar(101, 102, 99, 100, 0),
		}, PatternThreeBlackCrows, -1},
		{"none", flatBars(3, 100, 0), "", 0},
		{"short", flatBars(2, 100, 0), "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, vote := DetectPattern(tt.bars)
			if got != tt.want || vote != tt.vote {
				t.Fatalf("got %q/%d, want %q/%d", got, vote, tt.want, tt.vote)
			}
		})
	}
}

func TestDetectRegime(t *testing.T) {
	r := DetectRegime(flatBars(19, 100, 0))
	if r.Name != model.RegimeRanging || r.Confidence != 0.5 {
		t.Fatalf("short history: got %+v", r)
	}

	r = DetectRegime(flatBars(30, 100, 0))
	if r.Name != model.RegimeLowVolatility || r.Confidence != 0.7 {
		t.Fatalf("flat: got %+v", r)
	}

	choppy := make([]Bar, 30)
	for i := range choppy {
		c := 100.0
		if i%2 == 1 {
			c = 105
		}
		choppy[i] = bar(c, c+1, c-1, c, 0)
	}
	r = DetectRegime(choppy)
	if r.Name != model.RegimeHighVolatility {
		t.Fatalf("choppy: got %+v", r)
	}
	assertClose(t, "high vol confidence", r.Confidence, 0.95, 1e-9)

	r = DetectRegime(risingBars(30, 100, 0.01))
	if r.Name != model.RegimeTrendingUp || r.Vote() != 1 {
		t.Fatalf("rising: got %+v", r)
	}
	assertClose(t, "trend confidence", r.Confidence, 0.95, 1e-9)
}

func TestVixState(t *testing.T) {
	tests := []struct {
		vix  float64
		want string
	}{
		{11.9, model.VixLow},
		{12, model.VixNormal},
		{15, model.VixHigh},
		{17.99, model.VixHigh},
		{18, model.VixExtreme},
	}
	for _, tt := range tests {
		if got := VixState(tt.vix); got != tt.want {
			t.Errorf("VixState(%v) = %s, want %s", tt.vix, got, tt.want)
		}
	}
}

func TestDepthBias_RequiresBothConditions(t *testing.T) {
	tests := []struct {
		ratio float64
		imb   int64
		want  string
	}{
		{1.5, 100, model.BuyerDominant},
		{1.5, 99, model.Neutral},
		{1.3, 500, model.Neutral},
		{0.67, -100, model.SellerDominant},
		{0.5, -50, model.Neutral},
	}
	for _, tt := range tests {
		if got := DepthBias(tt.ratio, tt.imb); got != tt.want {
			t.Errorf("DepthBias(%v,%d) = %s, want %s", tt.ratio, tt.imb, got, tt.want)
		}
	}
	if OIVote(model.ShortCovering) != 1 || OIVote(model.LongUnwinding) != -1 || OIVote(model.NoCategory) != 0 {
		t.Error("unexpected OI votes")
	}
}

func TestFold(t *testing.T) {
	bars := []Bar{
		{Minute: "a", Open: 10, High: 12, Low: 9, Close: 11, Volume: 1},
		{Minute: "b", Open: 11, High: 15, Low: 10, Close: 14, Volume: 2},
		{Minute: "c", Open: 14, High: 14, Low: 8, Close: 9, Volume: 3},
	}
	f := Fold(bars)
	want := Bar{Minute: "c", Open: 10, High: 15, Low: 8, Close: 9, Volume: 6}
	if f != want {
		t.Fatalf("got %+v, want %+v", f, want)
	}
}
