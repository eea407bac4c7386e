// cmd/candlebuilder aggregates recorded ticks into per-minute candles with
// order-book depth metrics.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trading-analyticsv1/config"
	"trading-analyticsv1/internal/logger"
	"trading-analyticsv1/internal/marketdata/agg"
	"trading-analyticsv1/internal/markethours"
	"trading-analyticsv1/internal/metrics"
	"trading-analyticsv1/internal/pipeline"
	sqlitestore "trading-analyticsv1/internal/store/sqlite"
)

const stage = "candles"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(); err != nil {
		log.Printf("[candlebuilder] fatal: %v", err)
		os.Exit(1)
	}
	log.Println("[candlebuilder] stopped")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slogger := logger.Init("candlebuilder", logger.ParseLevel(cfg.LogLevel))
	u, err := config.LoadUniverse(cfg.UniversePath)
	if err != nil {
		return err
	}
	if err := markethours.AddHolidays(cfg.ExtraHolidays); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.MarketHoursOnly {
		log.Printf("[candlebuilder] gated on market hours: %s", markethours.StatusString(time.Now()))
	}

	// ---- Stores ----
	os.MkdirAll(filepath.Dir(cfg.CandlesDB), 0o755)
	ticks, err := sqlitestore.NewTickStore(cfg.TicksDB)
	if err != nil {
		return fmt.Errorf("tick store: %w", err)
	}
	defer ticks.Close()
	candles, err := sqlitestore.NewCandleStore(cfg.CandlesDB)
	if err != nil {
		return fmt.Errorf("candle store: %w", err)
	}
	defer candles.Close()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(stage, prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(stage)
	health.StartLivenessChecker(ctx, nil, []*sql.DB{ticks.DB(), candles.DB()}, 10*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	// ---- Builder ----
	builder := agg.NewBuilder(ticks, candles, markethours.IST)
	builder.Tokens = u.CandleTokens
	builder.OnMalformed = func(n int) { prom.MalformedTicks.Add(float64(n)) }

	runner := &pipeline.Runner{
		Stage:                stage,
		Interval:             cfg.CandleInterval,
		RetryPause:           cfg.RetryPause,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Cycle:                builder.RunCycle,
		Open:                 markethours.SessionGate(cfg.MarketHoursOnly),
		Logger:               slogger,
		Observe: func(res pipeline.Result) {
			prom.ObserveCycle(res.Elapsed, res.Rows, res.Err)
			wm, _ := candles.LastMinute(ctx)
			prom.ObserveWatermark(wm, time.Now(), markethours.IST)
			health.SetCycle(res.Started, wm, res.Err)
		},
	}

	log.Printf("[candlebuilder] ticks=%s candles=%s interval=%s allow-list=%d",
		cfg.TicksDB, cfg.CandlesDB, cfg.CandleInterval, len(u.CandleTokens))
	return runner.Run(ctx)
}
