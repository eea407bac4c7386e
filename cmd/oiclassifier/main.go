// cmd/oiclassifier derives per-minute OI behaviour categories (long build-up,
// short build-up, short covering, long unwinding) for the futures allow-list.
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
	"trading-analyticsv1/internal/marketdata/oicat"
	"trading-analyticsv1/internal/markethours"
	"trading-analyticsv1/internal/metrics"
	"trading-analyticsv1/internal/pipeline"
	sqlitestore "trading-analyticsv1/internal/store/sqlite"
)

const stage = "oi"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(); err != nil {
		log.Printf("[oiclassifier] fatal: %v", err)
		os.Exit(1)
	}
	log.Println("[oiclassifier] stopped")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slogger := logger.Init("oiclassifier", logger.ParseLevel(cfg.LogLevel))
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
		log.Printf("[oiclassifier] gated on market hours: %s", markethours.StatusString(time.Now()))
	}

	// ---- Stores ----
	os.MkdirAll(filepath.Dir(cfg.OIDB), 0o755)
	ticks, err := sqlitestore.NewTickStore(cfg.TicksDB)
	if err != nil {
		return fmt.Errorf("tick store: %w", err)
	}
	defer ticks.Close()
	oi, err := sqlitestore.NewOIStore(cfg.OIDB)
	if err != nil {
		return fmt.Errorf("oi store: %w", err)
	}
	defer oi.Close()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(stage, prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(stage)
	health.StartLivenessChecker(ctx, nil, []*sql.DB{ticks.DB(), oi.DB()}, 10*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	// ---- Classifier ----
	classifier := oicat.NewClassifier(ticks, oi, u.OIFutures, markethours.IST)
	classifier.OnSkipped = func(n int) { prom.OISkippedBuckets.Add(float64(n)) }

	runner := &pipeline.Runner{
		Stage:                stage,
		Interval:             cfg.OIInterval,
		RetryPause:           cfg.RetryPause,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Cycle:                classifier.RunCycle,
		Open:                 markethours.SessionGate(cfg.MarketHoursOnly),
		Logger:               slogger,
		Observe: func(res pipeline.Result) {
			prom.ObserveCycle(res.Elapsed, res.Rows, res.Err)
			wm, _ := oi.LastMinute(ctx, u.OIFutures)
			prom.ObserveWatermark(wm, time.Now(), markethours.IST)
			health.SetCycle(res.Started, wm, res.Err)
		},
	}

	log.Printf("[oiclassifier] futures=%v interval=%s", u.OIFutures, cfg.OIInterval)
	return runner.Run(ctx)
}
