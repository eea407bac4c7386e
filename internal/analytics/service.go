package analytics

import (
	"context"
	"fmt"
	"log"

	"trading-analyticsv1/internal/model"
)

// Service advances the indicator engine over newly committed candle minutes.
type Service struct {
	candles  model.CandleSource
	oi       model.OILookup
	sink     model.AnalyticsSink
	universe *model.Universe
	engine   *Engine

	processing map[int64]model.Instrument

	// Publisher is optional; rows are published after each commit.
	Publisher model.Publisher

	// OnRows is called with the number of rows committed by a cycle.
	OnRows func(n int)
}

// NewService wires a service for the given universe.
func NewService(candles model.CandleSource, oi model.OILookup, sink model.AnalyticsSink, u *model.Universe) *Service {
	return &Service{
		candles:    candles,
		oi:         oi,
		sink:       sink,
		universe:   u,
		engine:     NewEngine(u.Window1m, u.Window5m),
		processing: u.ProcessingSet(),
	}
}

// Engine exposes the underlying engine.
func (s *Service) Engine() *Engine { return s.engine }

// Warmup rebuilds every instrument's windows from the stored candles at or
// before the analytics watermark. A fresh store needs no warmup.
func (s *Service) Warmup(ctx context.Context) error {
	wm, err := s.sink.LastMinute(ctx)
	if err != nil {
		return fmt.Errorf("analytics watermark: %w", err)
	}
	if wm == "" {
		return nil
	}

	s.engine.Reset()
	if s.universe.VIX.Token > 0 {
		vix, err := s.candles.History(ctx, s.universe.VIX.Token, wm, 1)
		if err != nil {
			return fmt.Errorf("vix history: %w", err)
		}
		if len(vix) > 0 {
			s.engine.SetVix(vix[len(vix)-1].Close)
		}
	}

	var replayed int
	for _, in := range s.universe.Processing() {
		hist, err := s.candles.History(ctx, in.Token, wm, s.universe.Window1m)
		if err != nil {
			return fmt.Errorf("history %s: %w", in.Symbol, err)
		}
		for _, c := range hist {
			s.engine.Compute(c, model.NoCategory)
		}
		replayed += len(hist)
	}
	log.Printf("[analytics] warmed %d instruments from %d candles up to %s", s.engine.Instruments(), replayed, wm)
	return nil
}

// RunCycle processes every candle minute after the analytics watermark and
// commits the results in one transaction. It returns the number of
// indicator rows written. On a failed commit the engine is reset and
// re-warmed so the next cycle replays the same minutes from a clean state.
func (s *Service) RunCycle(ctx context.Context) (int, error) {
	wm, err := s.sink.LastMinute(ctx)
	if err != nil {
		return 0, fmt.Errorf("analytics watermark: %w", err)
	}
	minutes, err := s.candles.MinutesAfter(ctx, wm)
	if err != nil {
		return 0, fmt.Errorf("candle minutes: %w", err)
	}
	if len(minutes) == 0 {
		return 0, nil
	}

	batch := make([]model.MinuteAnalytics, 0, len(minutes))
	var rows int
	for _, minute := range minutes {
		if err := ctx.Err(); err != nil {
			return 0, s.rewind(ctx, err)
		}
		ma, err := s.computeMinute(ctx, minute)
		if err != nil {
			return 0, s.rewind(ctx, err)
		}
		rows += len(ma.Rows)
		batch = append(batch, ma)
	}

	if err := s.sink.WriteAnalytics(ctx, batch); err != nil {
		return 0, s.rewind(ctx, fmt.Errorf("write analytics: %w", err))
	}

	if s.OnRows != nil {
		s.OnRows(rows)
	}
	if s.Publisher != nil {
		for _, ma := range batch {
			s.Publisher.PublishAnalytics(ctx, ma.Rows)
		}
	}
	return rows, nil
}

// computeMinute builds the rows and rollups of one minute. The VIX candle
// is applied before any instrument so every row of the minute sees it.
func (s *Service) computeMinute(ctx context.Context, minute string) (model.MinuteAnalytics, error) {
	candles, err := s.candles.CandlesAt(ctx, minute)
	if err != nil {
		return model.MinuteAnalytics{}, fmt.Errorf("candles at %s: %w", minute, err)
	}
	for _, c := range candles {
		if c.Token == s.universe.VIX.Token {
			s.engine.SetVix(c.Close)
		}
	}

	ma := model.MinuteAnalytics{Minute: minute}
	for _, c := range candles {
		in, ok := s.processing[c.Token]
		if !ok {
			continue
		}
		if c.Symbol == "" {
			c.Symbol = in.Symbol
		}
		category := model.NoCategory
		if fut, ok := s.universe.FuturesFor(in.Symbol); ok {
			category, err = s.oi.Category(ctx, fut, minute)
			if err != nil {
				return model.MinuteAnalytics{}, fmt.Errorf("oi category %s@%s: %w", in.Symbol, minute, err)
			}
		}
		ma.Rows = append(ma.Rows, s.engine.Compute(c, category))
	}
	if len(ma.Rows) > 0 {
		ma.Sectors = SectorRollups(minute, ma.Rows, s.universe.Sectors)
		ma.Market = MarketDirection(minute, ma.Rows, s.universe.Market, s.universe.StockTokens())
	}
	return ma, nil
}

// rewind restores the engine to the committed watermark after cause.
func (s *Service) rewind(ctx context.Context, cause error) error {
	s.engine.Reset()
	if err := s.Warmup(ctx); err != nil {
		log.Printf("[analytics] re-warm failed: %v", err)
	}
	return cause
}
