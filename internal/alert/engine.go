package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-analyticsv1/internal/indicator"
	"trading-analyticsv1/internal/model"
	"trading-analyticsv1/internal/notification"
)

// DefaultCatchUp bounds how many analytics minutes one cycle evaluates.
const DefaultCatchUp = 5

// Decision outcomes, also used as metric labels.
const (
	OutcomeFired       = "fired"
	OutcomeNoSignal    = "no_signal"
	OutcomeUnconfirmed = "unconfirmed"
	OutcomeWait        = "wait"
	OutcomeLowGrade    = "low_grade"
	OutcomeDuplicate   = "duplicate"
	OutcomePending     = "pending"
	OutcomeCooldown    = "cooldown"
)

// Decision describes how one instrument's minute was handled.
type Decision struct {
	Symbol     string
	Minute     string
	Action     string
	Grade      string
	Confidence int
	Outcome    string
}

// Engine evaluates analytics minutes after its persisted watermark.
type Engine struct {
	src     model.AnalyticsSource
	store   model.AlertStore
	symbols []model.Instrument
	gate    *Gate

	// Notifier receives A+ and A alerts. Optional.
	Notifier notification.Notifier
	// Publisher receives every persisted alert. Optional.
	Publisher model.Publisher

	// CatchUp is the maximum number of minutes evaluated per cycle; older
	// minutes beyond it are skipped.
	CatchUp       int
	NotifyTimeout time.Duration

	// OnDecision observes every evaluated instrument minute.
	OnDecision func(Decision)
	// OnDeliveryFailure is called when a notifier rejects an alert.
	OnDeliveryFailure func(error)
}

// NewEngine creates an engine for the given instruments.
func NewEngine(src model.AnalyticsSource, store model.AlertStore, symbols []model.Instrument) *Engine {
	return &Engine{
		src:           src,
		store:         store,
		symbols:       symbols,
		gate:          NewGate(),
		CatchUp:       DefaultCatchUp,
		NotifyTimeout: 5 * time.Second,
	}
}

// Gate exposes the engine's confirmation and cooldown state.
func (e *Engine) Gate() *Gate { return e.gate }

// RunCycle evaluates every new analytics minute (bounded by CatchUp) and
// returns the number of alerts persisted. The watermark advances after
// each fully evaluated minute.
func (e *Engine) RunCycle(ctx context.Context) (int, error) {
	wm, err := e.store.Watermark(ctx)
	if err != nil {
		return 0, fmt.Errorf("alert watermark: %w", err)
	}
	minutes, err := e.src.MinutesAfter(ctx, wm)
	if err != nil {
		return 0, fmt.Errorf("analytics minutes: %w", err)
	}
	if e.CatchUp > 0 && len(minutes) > e.CatchUp {
		log.Printf("[alert] skipping %d stale minutes after %q", len(minutes)-e.CatchUp, wm)
		minutes = minutes[len(minutes)-e.CatchUp:]
	}

	var fired int
	for _, minute := range minutes {
		n, err := e.processMinute(ctx, minute)
		fired += n
		if err != nil {
			return fired, err
		}
		if err := e.store.SetWatermark(ctx, minute); err != nil {
			return fired, fmt.Errorf("set alert watermark: %w", err)
		}
	}
	return fired, nil
}

func (e *Engine) processMinute(ctx context.Context, minute string) (int, error) {
	sectors, err := e.src.Sectors(ctx, minute)
	if err != nil {
		return 0, fmt.Errorf("sectors at %s: %w", minute, err)
	}
	market, err := e.src.Market(ctx, minute)
	if err != nil {
		return 0, fmt.Errorf("market at %s: %w", minute, err)
	}

	var fired int
	for _, in := range e.symbols {
		row, err := e.src.Row(ctx, in.Token, minute)
		if err != nil {
			return fired, fmt.Errorf("row %s@%s: %w", in.Symbol, minute, err)
		}
		if row == nil {
			continue
		}
		rec, d, err := e.evaluate(ctx, in.Symbol, row, sectors, market)
		if err != nil {
			return fired, err
		}
		if rec != nil {
			if err := e.persist(ctx, rec); err != nil {
				return fired, err
			}
			fired++
		}
		if e.OnDecision != nil {
			e.OnDecision(d)
		}
	}
	return fired, nil
}

// BuildInputs classifies an indicator row and its minute's rollups.
func BuildInputs(row *model.IndicatorRow, sectors map[string]model.SectorRollup) Inputs {
	return Inputs{
		OICategory:    orNA(row.OICategory),
		DepthBias:     indicator.DepthBias(row.BidAskRatio, row.OrderImbalance),
		WeightedRatio: row.WeightedBidAskRatio,
		SectorBias:    SectorBias(sectors[SectorBanking].Signal, sectors[SectorNBFC].Signal),
		IndexBias:     IndexBias(row.BullishPercentage, row.BearishPercentage),
		Regime:        row.Regime,
		VixState:      indicator.VixState(row.VixValue),
	}
}

// evaluate runs the decision pipeline for one row. It returns the record to
// persist, or nil with the reason in the decision.
func (e *Engine) evaluate(ctx context.Context, symbol string, row *model.IndicatorRow,
	sectors map[string]model.SectorRollup, market *model.MarketDirection) (*model.AlertRecord, Decision, error) {

	d := Decision{Symbol: symbol, Minute: row.Minute}
	in := BuildInputs(row, sectors)

	if in.OICategory == model.NoCategory && in.DepthBias == model.Neutral {
		d.Outcome = OutcomeNoSignal
		return nil, d, nil
	}

	d.Confidence = Confidence(in)
	confirmations := Confirmations(in)
	if len(confirmations) < MinConfirmations {
		d.Outcome = OutcomeUnconfirmed
		return nil, d, nil
	}

	d.Action = DecideAction(in)
	if d.Action == model.ActionWait {
		e.gate.Clear(symbol)
		d.Outcome = OutcomeWait
		return nil, d, nil
	}

	d.Grade = Grade(d.Confidence)
	if d.Grade == model.GradeSkip {
		d.Outcome = OutcomeLowGrade
		return nil, d, nil
	}

	exists, err := e.store.Exists(ctx, symbol, row.Minute)
	if err != nil {
		return nil, d, fmt.Errorf("alert exists %s@%s: %w", symbol, row.Minute, err)
	}
	if exists {
		d.Outcome = OutcomeDuplicate
		return nil, d, nil
	}

	if !e.gate.Confirm(symbol, d.Action, row.Minute) {
		d.Outcome = OutcomePending
		return nil, d, nil
	}
	if e.gate.InCooldown(symbol, d.Action, d.Confidence, row.Minute) {
		d.Outcome = OutcomeCooldown
		return nil, d, nil
	}

	marketBias := model.SignalNeutral
	if market != nil {
		marketBias = market.Direction
	}
	d.Outcome = OutcomeFired
	return &model.AlertRecord{
		Minute:     row.Minute,
		Symbol:     symbol,
		OICategory: in.OICategory,
		DepthBias:  in.DepthBias,
		IndexBias:  in.IndexBias,
		SectorBias: in.SectorBias,
		MarketBias: marketBias,
		Regime:     in.Regime,
		VixState:   in.VixState,
		Confidence: d.Confidence,
		Action:     d.Action,
		Metadata:   Metadata(in, d.Action, d.Grade, confirmations),
	}, d, nil
}

// persist writes rec first, then delivers it. Delivery problems are logged
// and never undo the insert.
func (e *Engine) persist(ctx context.Context, rec *model.AlertRecord) error {
	id, err := e.store.Insert(ctx, rec)
	if err != nil {
		return fmt.Errorf("insert alert %s@%s: %w", rec.Symbol, rec.Minute, err)
	}
	e.gate.Fired(rec.Symbol, rec.Action, rec.Confidence, rec.Minute)
	log.Printf("[alert] %s %s %s conf=%d grade=%s", rec.Minute, rec.Symbol, rec.Action, rec.Confidence, rec.Metadata.AlertQuality)

	if e.Notifier != nil && Deliverable(rec.Metadata.AlertQuality) {
		nctx, cancel := context.WithTimeout(ctx, e.NotifyTimeout)
		err := e.Notifier.Send(nctx, Notification(rec))
		cancel()
		switch {
		case err != nil:
			log.Printf("[alert] delivery failed for alert %d: %v", id, err)
			if e.OnDeliveryFailure != nil {
				e.OnDeliveryFailure(err)
			}
		default:
			if err := e.store.MarkDelivered(ctx, id); err != nil {
				log.Printf("[alert] mark delivered %d: %v", id, err)
			} else {
				rec.TelegramSent = true
			}
		}
	}

	if e.Publisher != nil {
		e.Publisher.PublishAlert(ctx, *rec)
	}
	return nil
}

func orNA(category string) string {
	if category == "" {
		return model.NoCategory
	}
	return category
}
