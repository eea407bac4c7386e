// Package pipeline runs a stage's poll loop: fixed interval, session gate,
// consecutive-error budget.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trading-analyticsv1/internal/logger"
)

// ErrErrorBudgetExhausted is returned by Run when MaxConsecutiveErrors
// cycles failed in a row.
var ErrErrorBudgetExhausted = errors.New("pipeline: consecutive error budget exhausted")

// Cycle performs one bounded batch and returns the number of units written.
type Cycle func(ctx context.Context, now time.Time) (int, error)

// Result describes one executed cycle.
type Result struct {
	Started time.Time
	Elapsed time.Duration
	Rows    int
	Err     error
}

// Runner drives a Cycle until its context is cancelled.
type Runner struct {
	Stage                string
	Interval             time.Duration
	RetryPause           time.Duration
	MaxConsecutiveErrors int

	Cycle Cycle

	// Open gates cycles, typically on market hours. Nil means always open.
	Open func(time.Time) bool
	// Now defaults to time.Now.
	Now func() time.Time
	// Observe is called after every executed cycle.
	Observe func(Result)
	Logger  *slog.Logger
}

// Run loops until ctx is cancelled (returning nil) or the error budget is
// exhausted. Cancellation is observed between cycles; a cycle in flight
// sees the same ctx.
func (r *Runner) Run(ctx context.Context) error {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("stage", r.Stage))
	now := r.Now
	if now == nil {
		now = time.Now
	}

	var consecutive int
	for {
		if ctx.Err() != nil {
			return nil
		}
		wait := r.Interval
		started := now()

		if r.Open == nil || r.Open(started) {
			cctx := logger.WithTraceID(ctx, logger.GenerateTraceID(r.Stage, started))
			t0 := time.Now()
			rows, err := r.Cycle(cctx, started)
			res := Result{Started: started, Elapsed: time.Since(t0), Rows: rows, Err: err}
			if r.Observe != nil {
				r.Observe(res)
			}

			switch {
			case err != nil && ctx.Err() != nil:
				return nil
			case err != nil:
				consecutive++
				log.Error("cycle failed",
					append(logger.LogWithTrace(cctx),
						slog.Int("consecutive", consecutive),
						slog.String("error", err.Error()))...)
				if r.MaxConsecutiveErrors > 0 && consecutive >= r.MaxConsecutiveErrors {
					return fmt.Errorf("%w: %s after %d failures: %w", ErrErrorBudgetExhausted, r.Stage, consecutive, err)
				}
				wait = r.RetryPause
			default:
				consecutive = 0
				if rows > 0 {
					log.Info("cycle committed",
						append(logger.LogWithTrace(cctx),
							slog.Int("rows", rows),
							slog.Duration("elapsed", res.Elapsed))...)
				}
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
