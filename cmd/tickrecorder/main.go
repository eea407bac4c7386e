// cmd/tickrecorder subscribes to the WebSocket depth feed and appends every
// tick to the tick store in batched transactions.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trading-analyticsv1/config"
	"trading-analyticsv1/internal/logger"
	"trading-analyticsv1/internal/marketdata/wssim"
	"trading-analyticsv1/internal/markethours"
	"trading-analyticsv1/internal/metrics"
	"trading-analyticsv1/internal/model"
	sqlitestore "trading-analyticsv1/internal/store/sqlite"
)

const stage = "ticks"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(); err != nil {
		log.Printf("[tickrecorder] fatal: %v", err)
		os.Exit(1)
	}
	log.Println("[tickrecorder] stopped")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init("tickrecorder", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Store ----
	os.MkdirAll(filepath.Dir(cfg.TicksDB), 0o755)
	ticks, err := sqlitestore.NewTickStore(cfg.TicksDB)
	if err != nil {
		return fmt.Errorf("tick store: %w", err)
	}
	defer ticks.Close()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(stage, prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(stage)
	health.RequireWS = true
	health.StartLivenessChecker(ctx, nil, []*sql.DB{ticks.DB()}, 10*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		wasOpen := -1
		for {
			now := time.Now()
			open := 0
			if markethours.IsMarketOpen(now) {
				open = 1
			}
			prom.MarketState.Set(float64(open))
			if open != wasOpen {
				log.Printf("[tickrecorder] %s", markethours.StatusString(now))
				wasOpen = open
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()

	// ---- Feed -> store ----
	ing, err := wssim.New(wssim.Config{URL: cfg.TickFeedURL, Location: markethours.IST})
	if err != nil {
		return fmt.Errorf("tick feed: %w", err)
	}
	ing.OnReconnect = prom.WSReconnects.Inc
	ing.OnMalformed = prom.MalformedTicks.Inc
	ing.OnConnected = health.SetWSConnected

	ticks.OnCommit = func(n int, elapsed time.Duration) {
		prom.TicksRecorded.Add(float64(n))
		prom.ObserveCycle(elapsed, n, nil)
		health.SetCycle(time.Now(), "", nil)
	}

	tickCh := make(chan model.Tick, 10000)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticks.Run(ctx, tickCh)
	}()

	log.Printf("[tickrecorder] feed=%s store=%s", cfg.TickFeedURL, cfg.TicksDB)
	err = ing.Start(ctx, tickCh)
	close(tickCh)
	wg.Wait()
	return err
}
