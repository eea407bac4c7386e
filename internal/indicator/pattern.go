package indicator

// Candlestick patterns.
const (
	PatternBullishEngulfing   = "BULLISH_ENGULFING"
	PatternBearishEngulfing   = "BEARISH_ENGULFING"
	PatternThreeWhiteSoldiers = "THREE_WHITE_SOLDIERS"
	PatternThreeBlackCrows    = "THREE_BLACK_CROWS"
)

// DetectPattern inspects the last three bars and returns the first matching
// pattern with its vote, or ("", 0).
func DetectPattern(bars []Bar) (string, int) {
	if len(bars) < 3 {
		return "", 0
	}
	c1, c2, c3 := bars[len(bars)-3], bars[len(bars)-2], bars[len(bars)-1]

	switch {
	case c2.Close < c2.Open && c3.Close > c3.Open &&
		c3.Open < c2.Close && c3.Close > c2.Open:
		return PatternBullishEngulfing, 1

	case c2.Close > c2.Open && c3.Close < c3.Open &&
		c3.Open > c2.Close && c3.Close < c2.Open:
		return PatternBearishEngulfing, -1

	case bullish(c1) && bullish(c2) && bullish(c3) &&
		c3.Close > c2.Close && c2.Close > c1.Close:
		return PatternThreeWhiteSoldiers, 1

	case bearish(c1) && bearish(c2) && bearish(c3) &&
		c3.Close < c2.Close && c2.Close < c1.Close:
		return PatternThreeBlackCrows, -1
	}
	return "", 0
}

func bullish(b Bar) bool { return b.Close > b.Open }
func bearish(b Bar) bool { return b.Close < b.Open }
