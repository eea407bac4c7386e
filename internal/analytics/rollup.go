package analytics

import "trading-analyticsv1/internal/model"

// Rollup thresholds.
const (
	SectorSignalPercent = 60.0
	MarketBuyPercent    = 55.0
	MarketStrongPercent = 65.0
)

// Market direction weights.
const (
	WeightNifty     = 0.3
	WeightBankNifty = 0.4
	WeightTop10     = 0.2
	WeightFinNifty  = 0.1
)

// SectorRollups averages the percentages of each sector's members that had
// at least one active signal. A sector without active members yields no
// rollup.
func SectorRollups(minute string, rows []model.IndicatorRow, sectors []model.Sector) []model.SectorRollup {
	byToken := indexRows(rows)
	var out []model.SectorRollup
	for _, sec := range sectors {
		var buy, sell float64
		var n int
		for _, tok := range sec.Tokens {
			r, ok := byToken[tok]
			if !ok || r.TotalActive == 0 {
				continue
			}
			buy += r.BullishPercentage
			sell += r.BearishPercentage
			n++
		}
		if n == 0 {
			continue
		}
		buy /= float64(n)
		sell /= float64(n)

		signal := model.SignalNeutral
		switch {
		case buy > SectorSignalPercent:
			signal = model.SignalBuy
		case sell > SectorSignalPercent:
			signal = model.SignalSell
		}
		out = append(out, model.SectorRollup{
			Minute:         minute,
			Sector:         sec.Name,
			BuyPercentage:  buy,
			SellPercentage: sell,
			Signal:         signal,
			ActiveStocks:   n,
		})
	}
	return out
}

// MarketDirection blends the three indices and the top-10 stock average.
// Index percentages are taken from their rows as-is (0 when absent); the
// stock average only counts rows with active signals.
func MarketDirection(minute string, rows []model.IndicatorRow, blend model.MarketBlend, top10 []int64) *model.MarketDirection {
	byToken := indexRows(rows)
	pct := func(tok int64) (float64, float64) {
		if r, ok := byToken[tok]; ok {
			return r.BullishPercentage, r.BearishPercentage
		}
		return 0, 0
	}

	md := &model.MarketDirection{Minute: minute}
	md.NiftyBuy, md.NiftySell = pct(blend.Nifty)
	md.BankNiftyBuy, md.BankNiftySell = pct(blend.BankNifty)
	md.FinNiftyBuy, md.FinNiftySell = pct(blend.FinNifty)

	var n int
	for _, tok := range top10 {
		r, ok := byToken[tok]
		if !ok || r.TotalActive == 0 {
			continue
		}
		md.Top10Buy += r.BullishPercentage
		md.Top10Sell += r.BearishPercentage
		n++
	}
	if n > 0 {
		md.Top10Buy /= float64(n)
		md.Top10Sell /= float64(n)
	}

	md.OverallBuy = WeightNifty*md.NiftyBuy + WeightBankNifty*md.BankNiftyBuy +
		WeightTop10*md.Top10Buy + WeightFinNifty*md.FinNiftyBuy
	md.OverallSell = WeightNifty*md.NiftySell + WeightBankNifty*md.BankNiftySell +
		WeightTop10*md.Top10Sell + WeightFinNifty*md.FinNiftySell
	md.Direction = DirectionLabel(md.OverallBuy, md.OverallSell)
	return md
}

// DirectionLabel grades whichever side is higher against the 55/65
// breakpoints. Ties go to the buy side.
func DirectionLabel(buy, sell float64) string {
	if buy >= sell {
		switch {
		case buy > MarketStrongPercent:
			return model.SignalStrongBuy
		case buy > MarketBuyPercent:
			return model.SignalBuy
		}
		return model.SignalNeutral
	}
	switch {
	case sell > MarketStrongPercent:
		return model.SignalStrongSell
	case sell > MarketBuyPercent:
		return model.SignalSell
	}
	return model.SignalNeutral
}

func indexRows(rows []model.IndicatorRow) map[int64]*model.IndicatorRow {
	m := make(map[int64]*model.IndicatorRow, len(rows))
	for i := range rows {
		m[rows[i].Token] = &rows[i]
	}
	return m
}
